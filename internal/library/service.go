package library

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/avelez/gametracker/backend/internal/models"
)

// UserGameStore is the slice of the library-membership store the engine reads.
type UserGameStore interface {
	UserGamesByUser(ctx context.Context, userID string) ([]models.UserGame, error)
}

// GameStore fetches catalog rows for an id set.
type GameStore interface {
	GamesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Game, error)
}

// ReviewStore fetches all reviews, from any user, for an id set of games.
type ReviewStore interface {
	ReviewsByGameIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Review, error)
}

// Service composes per-user library views and dashboard stats by joining
// the user's library rows with catalog metadata and review aggregates.
// It only reads; nothing here mutates any store.
type Service struct {
	userGames UserGameStore
	games     GameStore
	reviews   ReviewStore
}

func NewService(userGames UserGameStore, games GameStore, reviews ReviewStore) *Service {
	return &Service{userGames: userGames, games: games, reviews: reviews}
}

// GetUserLibrary returns one LibraryEntry per library row the user owns,
// sorted most recently touched first. A row whose game is missing from
// the catalog is kept with a nil game rather than dropped, so the
// user's accounting stays complete.
func (s *Service) GetUserLibrary(ctx context.Context, userID string) ([]models.LibraryEntry, error) {
	rows, err := s.userGames.UserGamesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.LibraryEntry{}, nil
	}

	// Distinct game ids referenced by the library rows.
	seen := make(map[primitive.ObjectID]struct{}, len(rows))
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.GameID]; !ok {
			seen[row.GameID] = struct{}{}
			ids = append(ids, row.GameID)
		}
	}

	// The game and review lookups are independent reads; run them
	// concurrently and join once both complete.
	var (
		games   []models.Game
		reviews []models.Review
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		games, err = s.games.GamesByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = s.reviews.ReviewsByGameIDs(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	gamesByID := make(map[primitive.ObjectID]*models.Game, len(games))
	for i := range games {
		gamesByID[games[i].ID] = &games[i]
	}

	// Partition reviews per game into the user's own review and the
	// community totals.
	type reviewAgg struct {
		own   *models.Review
		count int
		sum   int
	}
	aggs := make(map[primitive.ObjectID]*reviewAgg, len(ids))
	for i := range reviews {
		rv := &reviews[i]
		agg := aggs[rv.GameID]
		if agg == nil {
			agg = &reviewAgg{}
			aggs[rv.GameID] = agg
		}
		agg.count++
		agg.sum += rv.Rating
		if rv.UserID == userID {
			agg.own = rv
		}
	}

	entries := make([]models.LibraryEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.LibraryEntry{
			ID:            row.ID.Hex(),
			Status:        row.Status,
			HoursPlayed:   row.HoursPlayed,
			MoneySpent:    row.MoneySpent,
			PersonalNotes: row.PersonalNotes,
			Game:          gamesByID[row.GameID],
			UpdatedAt:     row.UpdatedAt,
		}
		if agg := aggs[row.GameID]; agg != nil {
			entry.UserReview = agg.own
			entry.CommunityReviewCount = agg.count
			if agg.count > 0 {
				avg := float64(agg.sum) / float64(agg.count)
				entry.CommunityAvgRating = &avg
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return entries, nil
}

// GetUserStats computes the dashboard summary over the user's library
// rows. A user with no rows gets the zero-valued struct, never an error.
func (s *Service) GetUserStats(ctx context.Context, userID string) (*models.Stats, error) {
	rows, err := s.userGames.UserGamesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{}
	for _, row := range rows {
		stats.TotalGames++
		switch row.Status {
		case models.StatusCompleted:
			stats.TotalCompleted++
		case models.StatusBacklog:
			stats.TotalBacklog++
		case models.StatusWishlist:
			stats.TotalWishlist++
		case models.StatusPlaying:
			stats.TotalPlaying++
		}
		stats.TotalHours += row.HoursPlayed
		stats.TotalSpent += row.MoneySpent
	}
	return stats, nil
}
