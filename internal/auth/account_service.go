package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/crypto"
)

var (
	// ErrEmailTaken is returned when registration hits an existing account.
	ErrEmailTaken = errors.New("account: email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// that login failures cannot be used to probe registered addresses.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
	// ErrAccountDisabled signals a deactivated account. Surfaced distinctly
	// from ErrInvalidCredentials, mirroring the product's login behaviour.
	ErrAccountDisabled = errors.New("account: disabled")
	// ErrUserNotFound is returned for profile operations on missing users.
	ErrUserNotFound = errors.New("account: user not found")
)

// AccountConfig describes tunable behaviour for the AccountService.
type AccountConfig struct {
	// EncryptionKey protects the stored Gemini API key at rest. Must be a
	// valid AES key length (16, 24, or 32 bytes).
	EncryptionKey []byte
	Clock         func() time.Time
}

// RegisterInput captures the details required to create a new account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// ProfileUpdate lists the mutable profile fields. Nil pointers leave the
// corresponding field untouched.
type ProfileUpdate struct {
	Name         *string
	Avatar       *string
	GeminiAPIKey *string
}

// AccountService manages user records: registration, credential checks, and
// profile mutation.
type AccountService struct {
	db  *gorm.DB
	key []byte
	now func() time.Time
}

// NewAccountService constructs an account manager backed by the database.
func NewAccountService(db *gorm.DB, cfg AccountConfig) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}

	if length := len(cfg.EncryptionKey); length != 16 && length != 24 && length != 32 {
		return nil, fmt.Errorf("account service: encryption key must be 16, 24, or 32 bytes (got %d)", length)
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &AccountService{db: db, key: cfg.EncryptionKey, now: clock}, nil
}

// NormalizeEmail lowercases and trims an email address for use as identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with a hashed password. The email must not
// already have an account.
func (s *AccountService) Register(input RegisterInput) (*models.User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, errors.New("account service: email is required")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("account service: check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Email:     email,
		Password:  hashed,
		Name:      strings.TrimSpace(input.Name),
		IsActive:  true,
		LastLogin: &now,
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("account service: create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password produce the same error; a deactivated account is reported
// separately. A successful login refreshes LastLogin.
func (s *AccountService) Authenticate(email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("account service: query user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("account service: update last login: %w", err)
	}

	return &user, nil
}

// GetByID loads a user by identifier.
func (s *AccountService) GetByID(userID string) (*models.User, error) {
	var user models.User
	err := s.db.Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account service: query user: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies the supplied profile changes. The Gemini API key is
// encrypted before it touches the database; an empty string clears it.
func (s *AccountService) UpdateProfile(userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, errors.New("account service: name cannot be empty")
		}
		changes["name"] = name
	}

	if update.Avatar != nil {
		changes["avatar"] = strings.TrimSpace(*update.Avatar)
	}

	if update.GeminiAPIKey != nil {
		plaintext := strings.TrimSpace(*update.GeminiAPIKey)
		if plaintext == "" {
			changes["gemini_api_key"] = ""
		} else {
			encrypted, err := crypto.Encrypt([]byte(plaintext), s.key)
			if err != nil {
				return nil, fmt.Errorf("account service: encrypt api key: %w", err)
			}
			changes["gemini_api_key"] = encrypted
		}
	}

	if len(changes) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("account service: update profile: %w", err)
	}

	return s.GetByID(userID)
}

// GeminiKey decrypts the user's stored API key. Empty when none is set.
func (s *AccountService) GeminiKey(user *models.User) (string, error) {
	if user == nil || user.GeminiAPIKey == "" {
		return "", nil
	}

	plaintext, err := crypto.Decrypt(user.GeminiAPIKey, s.key)
	if err != nil {
		return "", fmt.Errorf("account service: decrypt api key: %w", err)
	}
	return string(plaintext), nil
}
