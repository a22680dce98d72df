package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/metrics"
)

// DefaultSessionRetention is how long inactive sessions are kept before the
// cleanup job removes them.
const DefaultSessionRetention = 30 * 24 * time.Hour

var (
	// ErrSessionNotFound indicates that no live session matches the token
	// or identifier. Revoked and expired sessions fall under this as well;
	// the liveness filter happens at query time.
	ErrSessionNotFound = errors.New("session: not found")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	Retention time.Duration
	Clock     func() time.Time
}

// SessionMetadata captures contextual information about the client, recorded
// for audit and session-management display only.
type SessionMetadata struct {
	UserAgent string
	IPAddress string
}

// SessionService is the durable record of which token pairs are considered
// live, independent of the tokens' embedded expiry. It provides the
// server-side revocation a stateless JWT scheme cannot.
type SessionService struct {
	db        *gorm.DB
	tokens    *TokenService
	retention time.Duration
	now       func() time.Time
}

// NewSessionService constructs a session manager backed by the provided
// database and token service.
func NewSessionService(db *gorm.DB, tokens *TokenService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("session service: token service is required")
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultSessionRetention
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:        db,
		tokens:    tokens,
		retention: retention,
		now:       clock,
	}, nil
}

// Create issues a fresh token pair and persists the session binding it to
// the user. A uniqueness violation on either token string is surfaced as-is:
// tokens are cryptographically unpredictable, so a collision is a fault,
// not a retryable condition.
func (s *SessionService) Create(userID string, meta SessionMetadata) (TokenPair, *models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return TokenPair{}, nil, errors.New("session service: user id is required")
	}

	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: issue tokens: %w", err)
	}

	session := &models.Session{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    s.now().Add(s.tokens.RefreshTTL()),
		IsActive:     true,
		UserAgent:    strings.TrimSpace(meta.UserAgent),
		IPAddress:    strings.TrimSpace(meta.IPAddress),
	}

	if err := s.db.Create(session).Error; err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return pair, session, nil
}

// FindLiveByAccessToken matches an active, unexpired session by its access
// token. Used on every authenticated request.
func (s *SessionService) FindLiveByAccessToken(token string) (*models.Session, error) {
	return s.findLive("access_token", token)
}

// FindLiveByRefreshToken matches an active, unexpired session by its refresh
// token. Used only on refresh.
func (s *SessionService) FindLiveByRefreshToken(token string) (*models.Session, error) {
	return s.findLive("refresh_token", token)
}

func (s *SessionService) findLive(column, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := s.db.
		Where(column+" = ? AND is_active = ? AND expires_at > ?", token, true, s.now()).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	return &session, nil
}

// Rotate issues a new token pair and overwrites the session's stored tokens
// and expiry in place. The old refresh token dies with the overwrite; a
// concurrent refresh loser simply holds stale tokens.
func (s *SessionService) Rotate(session *models.Session) (TokenPair, error) {
	if session == nil || session.ID == "" {
		return TokenPair{}, ErrSessionNotFound
	}

	pair, err := s.tokens.IssuePair(session.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: issue tokens: %w", err)
	}

	expiresAt := s.now().Add(s.tokens.RefreshTTL())

	result := s.db.Model(&models.Session{}).
		Where("id = ? AND is_active = ?", session.ID, true).
		Updates(map[string]any{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    expiresAt,
		})
	if result.Error != nil {
		return TokenPair{}, fmt.Errorf("session service: rotate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return TokenPair{}, ErrSessionNotFound
	}

	session.AccessToken = pair.AccessToken
	session.RefreshToken = pair.RefreshToken
	session.ExpiresAt = expiresAt

	return pair, nil
}

// Deactivate revokes a single session.
func (s *SessionService) Deactivate(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionNotFound
	}

	result := s.db.Model(&models.Session{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("session service: deactivate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))

	return nil
}

// DeactivateAllForUser revokes every active session owned by a user and
// reports how many were revoked.
func (s *SessionService) DeactivateAllForUser(userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("session service: user id is required")
	}

	result := s.db.Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("session service: deactivate user sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// ListLiveForUser returns the user's live sessions, newest first, for the
// session-management view.
func (s *SessionService) ListLiveForUser(userID string) ([]models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("session service: user id is required")
	}

	var sessions []models.Session
	err := s.db.
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, s.now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session service: list sessions: %w", err)
	}

	return sessions, nil
}

// CleanupExpired removes sessions that are expired, or inactive beyond the
// retention window. Best-effort housekeeping; the liveness filters already
// exclude these rows on the request path.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var liveExpired int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("expires_at < ? AND is_active = ?", now, true).
		Count(&liveExpired).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Or("is_active = ? AND updated_at < ?", false, now.Add(-s.retention)).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup sessions: %w", result.Error)
	}

	if liveExpired > 0 {
		metrics.ActiveSessions.Sub(float64(liveExpired))
	}

	return result.RowsAffected, nil
}
