package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes, used when configuration leaves them unset.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenCategory selects which secret and lifetime a token is bound to.
type TokenCategory string

const (
	// TokenCategoryAccess is the short-lived bearer credential attached to
	// every authenticated request.
	TokenCategoryAccess TokenCategory = "access"
	// TokenCategoryRefresh is the long-lived credential used only to mint
	// a new token pair.
	TokenCategoryRefresh TokenCategory = "refresh"
)

var (
	// ErrTokenInvalid marks a malformed token, a bad signature, or a token
	// signed for a different category.
	ErrTokenInvalid = errors.New("token: invalid")
	// ErrTokenExpired marks a well-formed token whose validity window has
	// passed. Callers surface a different message for this case.
	ErrTokenExpired = errors.New("token: expired")
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Clock         func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenPair represents an access token and refresh token issued together.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues and validates the two JWT categories. It is a pure
// function of its configuration; session state lives in the SessionService.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService constructs a TokenService from the provided configuration.
// Both secrets are mandatory and must differ so that a token of one category
// can never verify as the other.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("token: access secret must be provided")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("token: refresh secret must be provided")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair mints an access/refresh token pair for the supplied user.
func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	accessToken, err := s.Issue(userID, TokenCategoryAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := s.Issue(userID, TokenCategoryRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Issue signs a single token of the requested category.
func (s *TokenService) Issue(userID string, category TokenCategory) (string, error) {
	if userID == "" {
		return "", errors.New("token: user id is required")
	}

	secret, ttl, err := s.categoryParams(category)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps same-second issuances for one user distinct;
			// session rows index the token strings uniquely.
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a signed token against the category-specific
// secret. Expiry and signature failures are distinguishable via errors.Is.
func (s *TokenService) Verify(tokenString string, category TokenCategory) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	secret, _, err := s.categoryParams(category)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err = parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}

	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}

func (s *TokenService) categoryParams(category TokenCategory) ([]byte, time.Duration, error) {
	switch category {
	case TokenCategoryAccess:
		return s.accessSecret, s.accessTTL, nil
	case TokenCategoryRefresh:
		return s.refreshSecret, s.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("token: unknown category %q", category)
	}
}
