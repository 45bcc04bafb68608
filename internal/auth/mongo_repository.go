package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection    = "users"
	sessionsCollection = "sessions"
)

// MongoRepository implements UserStore and SessionStore on top of MongoDB collections.
type MongoRepository struct {
	db       *mongo.Database
	users    *mongo.Collection
	sessions *mongo.Collection
}

// NewMongoRepository creates a new MongoRepository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		db:       db,
		users:    db.Collection(usersCollection),
		sessions: db.Collection(sessionsCollection),
	}
}

// EnsureIndexes creates the unique keys the stores rely on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users email index: %w", err)
	}

	if _, err := r.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_email", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("sessions indexes: %w", err)
	}
	return nil
}

// FindUserByEmail looks up a user document by email.
func (r *MongoRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toUser(), nil
}

// CreateUser inserts a user document; the unique email index rejects duplicates.
func (r *MongoRepository) CreateUser(ctx context.Context, user User) error {
	if _, err := r.users.InsertOne(ctx, newUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// UpdateUserProfile sets the supplied fields and marks the profile complete once both are present.
// Both happen in one pipeline update so readers never see the fields without the flag.
func (r *MongoRepository) UpdateUserProfile(ctx context.Context, email string, update ProfileUpdate) (*User, error) {
	pipeline := profileUpdatePipeline(update)
	if pipeline == nil {
		return r.FindUserByEmail(ctx, email)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.users.FindOneAndUpdate(ctx, bson.M{"email": email}, pipeline, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toUser(), nil
}

// profileUpdatePipeline returns nil for an empty update. Values are wrapped in $literal
// so a country such as "$x" is stored as text rather than read as a field path.
func profileUpdatePipeline(update ProfileUpdate) mongo.Pipeline {
	set := bson.D{}
	if update.Age != nil {
		set = append(set, bson.E{Key: "age", Value: bson.D{{Key: "$literal", Value: *update.Age}}})
	}
	if update.Country != nil {
		set = append(set, bson.E{Key: "country", Value: bson.D{{Key: "$literal", Value: *update.Country}}})
	}
	if len(set) == 0 {
		return nil
	}

	present := func(field string) bson.D {
		return bson.D{{Key: "$ne", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, nil}}}, nil}}}
	}
	complete := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$profile_complete", false}}},
		bson.D{{Key: "$and", Value: bson.A{present("age"), present("country")}}},
	}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: set}},
		{{Key: "$set", Value: bson.D{{Key: "profile_complete", Value: complete}}}},
	}
}

// ListUsers returns up to limit users in natural order.
func (r *MongoRepository) ListUsers(ctx context.Context, limit int) ([]User, error) {
	cursor, err := r.users.Find(ctx, bson.M{}, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].toUser())
	}
	return users, nil
}

// CreateSession stores a session, replacing a document with the same token.
func (r *MongoRepository) CreateSession(ctx context.Context, session Session) error {
	doc := sessionDocument{
		Token:     session.Token,
		UserEmail: session.UserEmail,
		ExpiresAt: session.ExpiresAt.UTC(),
		CreatedAt: session.CreatedAt.UTC(),
	}
	_, err := r.sessions.ReplaceOne(ctx, bson.M{"session_token": session.Token}, doc, options.Replace().SetUpsert(true))
	return err
}

// FindSession looks up a session by token.
func (r *MongoRepository) FindSession(ctx context.Context, token string) (*Session, error) {
	var doc storedSessionDocument
	if err := r.sessions.FindOne(ctx, bson.M{"session_token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toSession()
}

// DeleteSession removes the session document for token.
func (r *MongoRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.sessions.DeleteOne(ctx, bson.M{"session_token": token})
	return err
}

// DeleteExpiredSessions removes sessions whose expiry is before now.
func (r *MongoRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.sessions.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now.UTC()}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// Ping verifies connectivity to the server.
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}

type userDocument struct {
	ID              string    `bson:"id,omitempty"`
	Email           string    `bson:"email"`
	Name            string    `bson:"name"`
	Picture         *string   `bson:"picture"`
	Age             *int      `bson:"age,omitempty"`
	Country         *string   `bson:"country,omitempty"`
	ProfileComplete bool      `bson:"profile_complete"`
	CreatedAt       time.Time `bson:"created_at"`
	TotalGames      int       `bson:"total_games"`
	Wins            int       `bson:"wins"`
	Losses          int       `bson:"losses"`
	Draws           int       `bson:"draws"`
}

func newUserDocument(u User) userDocument {
	doc := userDocument{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		Age:             u.Age,
		Country:         u.Country,
		ProfileComplete: u.ProfileComplete,
		CreatedAt:       u.CreatedAt.UTC(),
		TotalGames:      u.Stats.TotalGames,
		Wins:            u.Stats.Wins,
		Losses:          u.Stats.Losses,
		Draws:           u.Stats.Draws,
	}
	if u.Picture != "" {
		picture := u.Picture
		doc.Picture = &picture
	}
	return doc
}

func (d *userDocument) toUser() *User {
	user := &User{
		Email:           d.Email,
		Name:            d.Name,
		Age:             d.Age,
		Country:         d.Country,
		ProfileComplete: d.ProfileComplete,
		CreatedAt:       d.CreatedAt.UTC(),
		Stats: Stats{
			TotalGames: d.TotalGames,
			Wins:       d.Wins,
			Losses:     d.Losses,
			Draws:      d.Draws,
		},
	}
	// Records created before local ids existed carry none.
	if id, err := uuid.Parse(d.ID); err == nil {
		user.ID = id
	}
	if d.Picture != nil {
		user.Picture = *d.Picture
	}
	return user
}

type sessionDocument struct {
	Token     string    `bson:"session_token"`
	UserEmail string    `bson:"user_email"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// storedSessionDocument keeps timestamps raw so legacy string values still decode.
type storedSessionDocument struct {
	Token     string        `bson:"session_token"`
	UserEmail string        `bson:"user_email"`
	ExpiresAt bson.RawValue `bson:"expires_at"`
	CreatedAt bson.RawValue `bson:"created_at"`
}

func (d *storedSessionDocument) toSession() (*Session, error) {
	expiresAt, err := decodeStoredTime(d.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("session expires_at: %w", err)
	}
	createdAt, err := decodeStoredTime(d.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return &Session{
		Token:     d.Token,
		UserEmail: d.UserEmail,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

func decodeStoredTime(v bson.RawValue) (time.Time, error) {
	switch v.Type {
	case bson.TypeDateTime:
		ms, _ := v.DateTimeOK()
		return time.UnixMilli(ms).UTC(), nil
	case bson.TypeString:
		s, _ := v.StringValueOK()
		return ParseStoredTime(s)
	default:
		return time.Time{}, fmt.Errorf("unsupported bson type %v", v.Type)
	}
}
