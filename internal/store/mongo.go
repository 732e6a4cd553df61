package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore handles catalog, library, and review documents in MongoDB.
type MongoStore struct {
	games     *mongo.Collection
	userGames *mongo.Collection
	reviews   *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		games:     db.Collection("games"),
		userGames: db.Collection("user_games"),
		reviews:   db.Collection("reviews"),
	}
}

// EnsureIndexes creates the uniqueness constraints once at startup:
// slug on games, and the compound (userId, gameId) pair on both
// user_games and reviews. Duplicate-key errors from these indexes are
// what surface as ErrConflict on the write paths.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	pair := bson.D{{Key: "userId", Value: 1}, {Key: "gameId", Value: 1}}

	if _, err := s.games.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("games slug index: %w", err)
	}
	if _, err := s.userGames.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    pair,
		Options: unique,
	}); err != nil {
		return fmt.Errorf("user_games pair index: %w", err)
	}
	if _, err := s.reviews.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    pair,
		Options: unique,
	}); err != nil {
		return fmt.Errorf("reviews pair index: %w", err)
	}
	_, err := s.reviews.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "gameId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("reviews gameId index: %w", err)
	}
	return nil
}
