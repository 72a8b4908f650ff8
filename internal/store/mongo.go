package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cheerpup/apps/backend/internal/domain"
)

const usersCollection = "users"

// Mongo stores each user as a native document keyed by its uuid.
type Mongo struct {
	db    *mongo.Database
	users *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db, users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the sparse unique login indexes. Safe to call on
// every startup.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("users_email_unique"),
		},
		{
			Keys:    bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("users_phone_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Create(ctx context.Context, user *domain.User) error {
	user.Version = 1
	if _, err := m.users.InsertOne(ctx, user); err != nil {
		user.Version = 0
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *Mongo) Load(ctx context.Context, id string) (*domain.User, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *Mongo) FindByLogin(ctx context.Context, email, phone *string) (*domain.User, error) {
	switch {
	case email != nil:
		return m.findOne(ctx, bson.M{"email": *email})
	case phone != nil:
		return m.findOne(ctx, bson.M{"phoneNumber": *phone})
	default:
		return nil, ErrNotFound
	}
}

func (m *Mongo) Save(ctx context.Context, user *domain.User) error {
	next := user.Clone()
	next.Version = user.Version + 1
	result, err := m.users.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": user.Version}, next)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	if result.MatchedCount == 0 {
		count, err := m.users.CountDocuments(ctx, bson.M{"_id": user.ID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	user.Version = next.Version
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, nil)
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := m.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.EnsureCollections()
	return &user, nil
}
