package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRepository implements Repository on the status_checks collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a new MongoRepository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection("status_checks")}
}

type checkDocument struct {
	ID         string    `bson:"id"`
	ClientName string    `bson:"client_name"`
	Timestamp  time.Time `bson:"timestamp"`
}

// Create inserts a status check document.
func (r *MongoRepository) Create(ctx context.Context, check Check) (Check, error) {
	doc := checkDocument{ID: check.ID.String(), ClientName: check.ClientName, Timestamp: check.Timestamp.UTC()}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return Check{}, err
	}
	return check, nil
}

// List returns up to limit status checks in natural order.
func (r *MongoRepository) List(ctx context.Context, limit int) ([]Check, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []checkDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	checks := make([]Check, 0, len(docs))
	for _, doc := range docs {
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			continue
		}
		checks = append(checks, Check{ID: id, ClientName: doc.ClientName, Timestamp: doc.Timestamp.UTC()})
	}
	return checks, nil
}
