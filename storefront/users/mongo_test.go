package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestUserDocument_Conversion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := bson.NewObjectID().Hex()

	u := &User{
		ID:         id,
		Name:       "Grace",
		Email:      "grace@example.com",
		Role:       RoleUser,
		IsVerified: true,
		IsActive:   true,
		Provider:   ProviderGoogle,
		ProviderID: "g-42",
		AvatarURL:  "https://img/grace.png",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	doc, err := toDocument(u)
	require.NoError(t, err)

	assert.Equal(t, id, doc.ID.Hex())
	assert.Equal(t, "g-42", doc.GoogleID)
	assert.Empty(t, doc.PasswordHash)
	assert.Equal(t, u, doc.toUser())
}

func TestUserDocument_InvalidID(t *testing.T) {
	_, err := toDocument(&User{ID: "not-hex"})
	assert.Error(t, err)
}

func TestMongoRepository_MalformedIDIsNotFound(t *testing.T) {
	repo := &MongoRepository{now: time.Now}
	ctx := context.Background()

	_, err := repo.FindByID(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.UpdateRole(ctx, "zzz", RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, "zzz", "hash"), ErrNotFound)
}
