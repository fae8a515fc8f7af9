package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := GenerateJWT(userID, true, "test-secret", time.Minute)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ValidateJWT(token, "test-secret")
	assert.NoError(t, err)
	assert.Equal(t, userID.Hex(), claims.UserID)
	assert.True(t, claims.IsAdmin)

	parsed, err := UserIDFromClaims(claims)
	assert.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(primitive.NewObjectID(), false, "secret-a", time.Minute)
	assert.NoError(t, err)

	_, err = ValidateJWT(token, "secret-b")
	assert.Error(t, err)
}

func TestValidateJWT_Expired(t *testing.T) {
	token, err := GenerateJWT(primitive.NewObjectID(), false, "test-secret", -time.Minute)
	assert.NoError(t, err)

	_, err = ValidateJWT(token, "test-secret")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
