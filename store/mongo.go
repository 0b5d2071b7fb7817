package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

type MongoStore struct {
	client   *mongo.Client
	payments *mongo.Collection
	users    *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		payments: db.Collection("payments"),
		users:    db.Collection("users"),
	}
}

// Migrate creates the unique indexes the store relies on.
func (s *MongoStore) Migrate(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.payments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "provider_order_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "payee_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return err
	}

	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
	})
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func insert(ctx context.Context, c *mongo.Collection, doc interface{}) error {
	_, err := c.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return insert(ctx, s.payments, p)
}

func (s *MongoStore) FindPaymentByOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error) {
	return findOne[models.Payment](ctx, s.payments, bson.M{"provider_order_id": providerOrderID})
}

// TransitionPayment matches on the pending status so only one writer can
// move a record out of it.
func (s *MongoStore) TransitionPayment(ctx context.Context, providerOrderID string, to models.PaymentStatus, providerPaymentID string, at time.Time) (bool, error) {
	res, err := s.payments.UpdateOne(ctx,
		bson.M{"provider_order_id": providerOrderID, "status": models.PSTATUS_PENDING},
		bson.M{"$set": bson.M{
			"status":              to,
			"provider_payment_id": providerPaymentID,
			"updated_at":          at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *MongoStore) ListPaymentsByPayee(ctx context.Context, payeeID string, status models.PaymentStatus, limit int) ([]models.Payment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.payments.Find(ctx, bson.M{"payee_id": payeeID, "status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payments []models.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return insert(ctx, s.users, u)
}

func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return findOne[models.User](ctx, s.users, bson.M{"_id": id})
}

func (s *MongoStore) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return findOne[models.User](ctx, s.users, bson.M{"$or": bson.A{
		bson.M{"email": login},
		bson.M{"username": login},
	}})
}

func (s *MongoStore) FindUserConflict(ctx context.Context, email, username string) (*models.User, error) {
	return findOne[models.User](ctx, s.users, bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}})
}
