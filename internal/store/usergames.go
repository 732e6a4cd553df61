package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avelez/gametracker/backend/internal/models"
)

// AddUserGame inserts a library entry. The compound (userId, gameId)
// index turns a duplicate add into ErrConflict.
func (s *MongoStore) AddUserGame(ctx context.Context, ug *models.UserGame) (*models.UserGame, error) {
	now := time.Now()
	ug.CreatedAt = now
	ug.UpdatedAt = now

	res, err := s.userGames.InsertOne(ctx, ug)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert user game: %w", err)
	}
	ug.ID = res.InsertedID.(primitive.ObjectID)
	return ug, nil
}

// UpdateUserGame applies a partial update to a library entry and returns
// the updated document.
func (s *MongoStore) UpdateUserGame(ctx context.Context, id string, upd models.UserGameUpdate) (*models.UserGame, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": time.Now()}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.HoursPlayed != nil {
		set["hoursPlayed"] = *upd.HoursPlayed
	}
	if upd.MoneySpent != nil {
		set["moneySpent"] = *upd.MoneySpent
	}
	if upd.PersonalNotes != nil {
		set["personalNotes"] = *upd.PersonalNotes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ug models.UserGame
	err = s.userGames.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&ug)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ug, nil
}

// DeleteUserGame removes a library entry. Returns false when nothing matched.
func (s *MongoStore) DeleteUserGame(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.userGames.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// UserGamesByUser returns every library entry owned by the user, most
// recently touched first.
func (s *MongoStore) UserGamesByUser(ctx context.Context, userID string) ([]models.UserGame, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := s.userGames.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	entries := []models.UserGame{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
