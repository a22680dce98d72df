package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/database/testutil"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func newTestAccountService(t *testing.T) (*AccountService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewAccountService(db, AccountConfig{
		EncryptionKey: []byte(testEncryptionKey),
		Clock:         newTestClock().Now,
	})
	require.NoError(t, err)
	return svc, db
}

func TestNewAccountServiceRejectsBadKey(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	_, err := NewAccountService(db, AccountConfig{EncryptionKey: []byte("short")})
	require.Error(t, err)
}

func TestRegisterNormalizesEmailAndHashesPassword(t *testing.T) {
	svc, _ := newTestAccountService(t)

	user, err := svc.Register(RegisterInput{
		Email:    "  Alice@Example.COM ",
		Password: "password1",
		Name:     "Alice",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "password1", user.Password)
	require.NotNil(t, user.LastLogin)
	require.True(t, user.IsActive)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAccountService(t)

	_, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	// Case and whitespace differences still collide.
	_, err = svc.Register(RegisterInput{Email: " ALICE@example.com", Password: "password2", Name: "Alice Again"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticateFailureUniformity(t *testing.T) {
	svc, _ := newTestAccountService(t)

	_, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	// Unknown email and wrong password are indistinguishable.
	_, unknownErr := svc.Authenticate("nobody@example.com", "password1")
	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)

	_, wrongErr := svc.Authenticate("alice@example.com", "wrong-password")
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)

	require.Equal(t, unknownErr, wrongErr)
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	svc, db := newTestAccountService(t)

	user, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_active", false).Error)

	_, err = svc.Authenticate("alice@example.com", "password1")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, _ := newTestAccountService(t)

	_, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	user, err := svc.Authenticate("Alice@Example.com", "password1")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotNil(t, user.LastLogin)
}

func TestUpdateProfileEncryptsGeminiKey(t *testing.T) {
	svc, db := newTestAccountService(t)

	user, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	apiKey := "AIzaSyTestKey123"
	updated, err := svc.UpdateProfile(user.ID, ProfileUpdate{GeminiAPIKey: &apiKey})
	require.NoError(t, err)

	// Stored ciphertext must not contain the plaintext.
	var stored models.User
	require.NoError(t, db.Take(&stored, "id = ?", user.ID).Error)
	require.NotEmpty(t, stored.GeminiAPIKey)
	require.NotContains(t, stored.GeminiAPIKey, apiKey)

	plaintext, err := svc.GeminiKey(updated)
	require.NoError(t, err)
	require.Equal(t, apiKey, plaintext)
}

func TestUpdateProfileClearsGeminiKey(t *testing.T) {
	svc, _ := newTestAccountService(t)

	user, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	apiKey := "AIzaSyTestKey123"
	_, err = svc.UpdateProfile(user.ID, ProfileUpdate{GeminiAPIKey: &apiKey})
	require.NoError(t, err)

	empty := ""
	updated, err := svc.UpdateProfile(user.ID, ProfileUpdate{GeminiAPIKey: &empty})
	require.NoError(t, err)
	require.Empty(t, updated.GeminiAPIKey)

	plaintext, err := svc.GeminiKey(updated)
	require.NoError(t, err)
	require.Empty(t, plaintext)
}

func TestUpdateProfileNameAndAvatar(t *testing.T) {
	svc, _ := newTestAccountService(t)

	user, err := svc.Register(RegisterInput{Email: "alice@example.com", Password: "password1", Name: "Alice"})
	require.NoError(t, err)

	name := "Alice B"
	avatar := "https://example.com/avatar.png"
	updated, err := svc.UpdateProfile(user.ID, ProfileUpdate{Name: &name, Avatar: &avatar})
	require.NoError(t, err)
	require.Equal(t, "Alice B", updated.Name)
	require.Equal(t, avatar, updated.Avatar)

	blank := "  "
	_, err = svc.UpdateProfile(user.ID, ProfileUpdate{Name: &blank})
	require.Error(t, err)
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	svc, _ := newTestAccountService(t)

	name := "Ghost"
	_, err := svc.UpdateProfile("11111111-1111-1111-1111-111111111111", ProfileUpdate{Name: &name})
	require.ErrorIs(t, err, ErrUserNotFound)
}
