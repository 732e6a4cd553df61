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

// ReviewFilter narrows ListReviews to a game, a user, or both.
type ReviewFilter struct {
	GameID *primitive.ObjectID
	UserID string
}

// CreateReview inserts a review. A second review for the same
// (userId, gameId) pair violates the compound index and returns
// ErrConflict; there is no separate existence pre-check.
func (s *MongoStore) CreateReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	res, err := s.reviews.InsertOne(ctx, r)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}
	r.ID = res.InsertedID.(primitive.ObjectID)
	return r, nil
}

// UpdateReview applies rating/text changes and returns the updated document.
func (s *MongoStore) UpdateReview(ctx context.Context, id string, rating *int, text *string) (*models.Review, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": time.Now()}
	if rating != nil {
		set["rating"] = *rating
	}
	if text != nil {
		set["text"] = *text
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.Review
	err = s.reviews.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReview removes a review. Returns false when nothing matched.
func (s *MongoStore) DeleteReview(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.reviews.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// ListReviews returns reviews matching the filter, newest first, with
// offset pagination.
func (s *MongoStore) ListReviews(ctx context.Context, f ReviewFilter, page, pageSize int64) ([]models.Review, error) {
	filter := bson.M{}
	if f.GameID != nil {
		filter["gameId"] = *f.GameID
	}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(pageSize).
		SetSkip(page * pageSize)
	cur, err := s.reviews.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	reviews := []models.Review{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ReviewsByGameIDs fetches every review, from any user, for the given
// games. Used by the aggregation engine and the game detail endpoint.
func (s *MongoStore) ReviewsByGameIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Review, error) {
	if len(ids) == 0 {
		return []models.Review{}, nil
	}
	cur, err := s.reviews.Find(ctx, bson.M{"gameId": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	reviews := []models.Review{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}
