package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/auth-gateway/internal/models"
)

// DefaultCollection is where user records have always been stored.
const DefaultCollection = "user_details"

// MongoStore handles user CRUD in MongoDB.
type MongoStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStore{col: db.Collection(collection), now: time.Now}
}

// EnsureIndexes creates the unique indexes that back the uniqueness
// invariants. username and googleId are sparse so that any number of
// documents may omit them.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("username_unique").SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetName("google_id_unique").SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	now := s.now().UTC()
	u.ID = uuid.New().String()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("mongo insert user: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// GetUserByUsernameOrEmail matches either field. An empty username only
// matches on email so absent usernames never collide.
func (s *MongoStore) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	if username == "" {
		return s.GetUserByEmail(ctx, email)
	}
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, idFilter(id))
}

// idFilter matches id as stored by this service (a UUID string) and, when
// id is 24 hex digits, as an ObjectId written by older deployments. The
// driver decodes ObjectId _id values into the hex string handed out in
// tokens, so both forms round-trip.
func idFilter(id string) bson.M {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return bson.M{"_id": id}
	}
	return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
}

func (s *MongoStore) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"googleId": googleID})
}

// LinkGoogleID attaches googleID to a user that has none yet.
func (s *MongoStore) LinkGoogleID(ctx context.Context, id, googleID string) (*models.User, error) {
	filter := idFilter(id)
	filter["googleId"] = bson.M{"$exists": false}
	update := bson.M{"$set": bson.M{"googleId": googleID, "updatedAt": s.now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u)
	switch {
	case err == nil:
		return &u, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("mongo link google id: %w", ErrDuplicateKey)
	case errors.Is(err, mongo.ErrNoDocuments):
		// Either the user is gone or it is already linked to an account.
		if _, err := s.GetUserByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("mongo link google id: %w", ErrDuplicateKey)
	default:
		return nil, fmt.Errorf("mongo link google id: %w", err)
	}
}

// ListUsers returns every user with the password hash projected out.
func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetProjection(bson.M{"password": 0}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list users: %w", err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo list users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &u, nil
}
