package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "users"

// mongo document shape of a user
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Name         string        `bson:"name"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash,omitempty"`
	Role         string        `bson:"role"`
	IsVerified   bool          `bson:"isVerified"`
	IsActive     bool          `bson:"isActive"`
	Provider     string        `bson:"provider"`
	GoogleID     string        `bson:"googleId,omitempty"`
	Avatar       string        `bson:"avatar,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

func toDocument(u *User) (userDocument, error) {
	doc := userDocument{
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		IsVerified:   u.IsVerified,
		IsActive:     u.IsActive,
		Provider:     string(u.Provider),
		GoogleID:     u.ProviderID,
		Avatar:       u.AvatarURL,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}

	if u.ID != "" {
		oid, err := bson.ObjectIDFromHex(u.ID)
		if err != nil {
			return userDocument{}, fmt.Errorf("invalid user id %q: %w", u.ID, err)
		}
		doc.ID = oid
	}

	return doc, nil
}

func (d userDocument) toUser() *User {
	return &User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         Role(d.Role),
		IsVerified:   d.IsVerified,
		IsActive:     d.IsActive,
		Provider:     Provider(d.Provider),
		ProviderID:   d.GoogleID,
		AvatarURL:    d.Avatar,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

var _ Store = (*MongoRepository)(nil)

// mongo-backed user store
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName), now: time.Now}
}

// creates the unique indexes on email and provider identity
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "googleId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"googleId": bson.M{"$exists": true}}),
		},
	})

	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	return nil
}

func (r *MongoRepository) Create(ctx context.Context, u *User) error {
	u.Email = normalizeEmail(u.Email)
	prepareNew(u, r.now().UTC())

	if u.ID == "" {
		u.ID = bson.NewObjectID().Hex()
	}

	doc, err := toDocument(u)
	if err != nil {
		return err
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}

		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *MongoRepository) FindByProviderID(ctx context.Context, provider Provider, providerID string) (*User, error) {
	if providerID == "" {
		return nil, ErrNotFound
	}

	return r.findOne(ctx, bson.M{"provider": string(provider), "googleId": providerID})
}

func (r *MongoRepository) LinkProvider(ctx context.Context, id string, link ProviderLink) (*User, error) {
	set := bson.M{
		"provider":   string(link.Provider),
		"googleId":   link.ProviderID,
		"isVerified": true,
	}

	if link.AvatarURL != "" {
		set["avatar"] = link.AvatarURL
	}

	return r.updateOne(ctx, id, set)
}

func (r *MongoRepository) UpdateProfile(ctx context.Context, id, name, avatarURL string) (*User, error) {
	return r.updateOne(ctx, id, bson.M{"name": name, "avatar": avatarURL})
}

func (r *MongoRepository) UpdateRole(ctx context.Context, id string, role Role) (*User, error) {
	return r.updateOne(ctx, id, bson.M{"role": string(role)})
}

func (r *MongoRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"passwordHash": passwordHash, "updatedAt": r.now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *MongoRepository) List(ctx context.Context, limit, offset int) ([]*User, error) {
	if offset < 0 {
		offset = 0
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(clampLimit(limit))).
		SetSkip(int64(offset))

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	result := make([]*User, 0, len(docs))
	for _, d := range docs {
		result = append(result, d.toUser())
	}

	return result, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDocument

	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return doc.toUser(), nil
}

func (r *MongoRepository) updateOne(ctx context.Context, id string, set bson.M) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set["updatedAt"] = r.now().UTC()

	var doc userDocument

	err = r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	return doc.toUser(), nil
}
