package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avelez/gametracker/backend/internal/models"
)

// CreateGame inserts a catalog entry. Slug collisions surface as ErrConflict.
func (s *MongoStore) CreateGame(ctx context.Context, g *models.Game) (*models.Game, error) {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	res, err := s.games.InsertOne(ctx, g)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert game: %w", err)
	}
	g.ID = res.InsertedID.(primitive.ObjectID)
	return g, nil
}

// GetGameByIDOrSlug tries the token as an ObjectID first, then as an
// exact slug match.
func (s *MongoStore) GetGameByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Game, error) {
	filter := bson.M{"slug": idOrSlug}
	if oid, err := primitive.ObjectIDFromHex(idOrSlug); err == nil {
		filter = bson.M{"_id": oid}
	}

	var g models.Game
	err := s.games.FindOne(ctx, filter).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGame applies a partial update and returns the updated document.
func (s *MongoStore) UpdateGame(ctx context.Context, id string, upd models.GameUpdate) (*models.Game, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": time.Now()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Slug != nil {
		set["slug"] = *upd.Slug
	}
	if upd.Platform != nil {
		set["platform"] = *upd.Platform
	}
	if upd.Genre != nil {
		set["genre"] = *upd.Genre
	}
	if upd.Year != nil {
		set["year"] = *upd.Year
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.CoverURL != nil {
		set["coverUrl"] = *upd.CoverURL
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var g models.Game
	err = s.games.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &g, nil
}

// SetGameCover records the stored cover object for a game.
func (s *MongoStore) SetGameCover(ctx context.Context, id, objectKey, contentType string) (*models.Game, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var g models.Game
	err = s.games.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"coverObjectKey":   objectKey,
		"coverContentType": contentType,
		"updatedAt":        time.Now(),
	}}, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGame removes a catalog entry. Returns false when nothing matched.
func (s *MongoStore) DeleteGame(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.games.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// SearchGames does a case-insensitive substring match on title, capped at
// limit. An empty query returns an empty result, never a full scan.
func (s *MongoStore) SearchGames(ctx context.Context, query string, limit int64) ([]models.Game, error) {
	if query == "" {
		return []models.Game{}, nil
	}
	filter := bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	cur, err := s.games.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	games := []models.Game{}
	if err := cur.All(ctx, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// AutocompleteTitles is SearchGames with a thin projection for suggestion UIs.
func (s *MongoStore) AutocompleteTitles(ctx context.Context, query string, limit int64) ([]models.Game, error) {
	if query == "" {
		return []models.Game{}, nil
	}
	filter := bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	opts := options.Find().
		SetLimit(limit).
		SetProjection(bson.M{"title": 1, "slug": 1, "genre": 1, "platform": 1, "price": 1})
	cur, err := s.games.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	games := []models.Game{}
	if err := cur.All(ctx, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// ListGames returns a page of the catalog with offset pagination.
func (s *MongoStore) ListGames(ctx context.Context, page, pageSize int64) ([]models.Game, error) {
	opts := options.Find().SetLimit(pageSize).SetSkip(page * pageSize)
	cur, err := s.games.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	games := []models.Game{}
	if err := cur.All(ctx, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// GamesByIDs fetches catalog rows for the given id set. Missing ids are
// simply absent from the result; the caller decides what that means.
func (s *MongoStore) GamesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Game, error) {
	if len(ids) == 0 {
		return []models.Game{}, nil
	}
	cur, err := s.games.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	games := []models.Game{}
	if err := cur.All(ctx, &games); err != nil {
		return nil, err
	}
	return games, nil
}
