package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Canonical library statuses. Anything else is rejected (or defaulted)
// at the handler boundary.
const (
	StatusBacklog   = "Backlog"
	StatusPlaying   = "Playing"
	StatusCompleted = "Completed"
	StatusWishlist  = "Wishlist"
)

// ValidStatus reports whether s is one of the four canonical statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusBacklog, StatusPlaying, StatusCompleted, StatusWishlist:
		return true
	}
	return false
}

// Game is a master catalog entry stored in MongoDB.
type Game struct {
	ID               primitive.ObjectID `json:"id"                    bson:"_id,omitempty"`
	Title            string             `json:"title"                 bson:"title"`
	Slug             string             `json:"slug"                  bson:"slug"`
	Platform         string             `json:"platform"              bson:"platform"`
	Genre            string             `json:"genre,omitempty"       bson:"genre,omitempty"`
	Year             *int               `json:"year,omitempty"        bson:"year,omitempty"`
	Price            *float64           `json:"price,omitempty"       bson:"price,omitempty"`
	CoverURL         string             `json:"coverUrl,omitempty"    bson:"coverUrl,omitempty"`
	CoverObjectKey   string             `json:"-"                     bson:"coverObjectKey,omitempty"`
	CoverContentType string             `json:"-"                     bson:"coverContentType,omitempty"`
	Description      string             `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"             bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"             bson:"updatedAt"`
}

// GameUpdate carries the mutable catalog fields for a partial update.
// Nil pointers mean "leave unchanged". Slug is set by the caller whenever
// Title is.
type GameUpdate struct {
	Title       *string
	Slug        *string
	Platform    *string
	Genre       *string
	Year        *int
	Price       *float64
	CoverURL    *string
	Description *string
}

// UserGame links a user to a catalog game with play bookkeeping.
// The (userId, gameId) pair is unique.
type UserGame struct {
	ID            primitive.ObjectID `json:"id"                      bson:"_id,omitempty"`
	UserID        string             `json:"userId"                  bson:"userId"`
	GameID        primitive.ObjectID `json:"gameId"                  bson:"gameId"`
	Status        string             `json:"status"                  bson:"status"`
	HoursPlayed   float64            `json:"hoursPlayed"             bson:"hoursPlayed"`
	MoneySpent    float64            `json:"moneySpent"              bson:"moneySpent"`
	PersonalNotes string             `json:"personalNotes,omitempty" bson:"personalNotes,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"               bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"               bson:"updatedAt"`
}

// UserGameUpdate carries the only mutable fields of a library entry.
type UserGameUpdate struct {
	Status        *string
	HoursPlayed   *float64
	MoneySpent    *float64
	PersonalNotes *string
}

// Review is a per-user-per-game review. The (userId, gameId) pair is
// unique; gameTitle is denormalized at creation time.
type Review struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	GameID    primitive.ObjectID `json:"gameId"     bson:"gameId"`
	UserID    string             `json:"userId"     bson:"userId"`
	GameTitle string             `json:"gameTitle"  bson:"gameTitle"`
	Rating    int                `json:"rating"     bson:"rating"`
	Text      string             `json:"text"       bson:"text"`
	CreatedAt time.Time          `json:"createdAt"  bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"  bson:"updatedAt"`
}

// LibraryEntry is one row of a user's annotated library view: the
// UserGame fields joined with catalog metadata and review aggregates.
// Game is nil when the catalog row is gone; the entry is still returned.
type LibraryEntry struct {
	ID                   string    `json:"id"`
	Status               string    `json:"status"`
	HoursPlayed          float64   `json:"hoursPlayed"`
	MoneySpent           float64   `json:"moneySpent"`
	PersonalNotes        string    `json:"personalNotes,omitempty"`
	Game                 *Game     `json:"game"`
	UserReview           *Review   `json:"userReview"`
	CommunityReviewCount int       `json:"communityReviewCount"`
	CommunityAvgRating   *float64  `json:"communityAvgRating"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Stats is the summary dashboard for one user's library.
type Stats struct {
	TotalGames     int     `json:"totalGames"`
	TotalCompleted int     `json:"totalCompleted"`
	TotalBacklog   int     `json:"totalBacklog"`
	TotalWishlist  int     `json:"totalWishlist"`
	TotalPlaying   int     `json:"totalPlaying"`
	TotalHours     float64 `json:"totalHours"`
	TotalSpent     float64 `json:"totalSpent"`
}
