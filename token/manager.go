package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// typeRefresh is the value of the "type" claim on refresh tokens. Access
// tokens omit the claim entirely.
const typeRefresh = "refresh"

var (
	// ErrInvalid covers every non-expiry verification failure: bad signature,
	// malformed structure, wrong algorithm, wrong issuer, wrong token type.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired is returned for a well-formed, correctly signed token whose
	// expiry has passed.
	ErrExpired = errors.New("token expired")
)

// Config holds the signing key and token lifetimes.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims is the claim set carried by both token kinds.
type Claims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string {
	return c.Subject
}

// Manager signs and verifies tokens under a single symmetric key. Safe for
// concurrent use.
type Manager struct {
	cfg Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	return &Manager{cfg: cfg}, nil
}

// IssueAccess signs a short-lived access token for subject. The caller
// supplies now so that issuance and any same-operation checks share one
// instant.
func (m *Manager) IssueAccess(subject string, now time.Time) (string, error) {
	return m.issue(subject, "", m.cfg.AccessTTL, now)
}

// IssueRefresh signs a long-lived refresh token for subject, tagged with the
// refresh type claim.
func (m *Manager) IssueRefresh(subject string, now time.Time) (string, error) {
	return m.issue(subject, typeRefresh, m.cfg.RefreshTTL, now)
}

func (m *Manager) issue(subject, kind string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
}

// VerifyAccess verifies an access token at the given instant. A refresh
// token presented here is ErrInvalid, not a lesser failure.
func (m *Manager) VerifyAccess(tokenStr string, now time.Time) (*Claims, error) {
	return m.verify(tokenStr, "", now)
}

// VerifyRefresh verifies a refresh token at the given instant. Access tokens
// are rejected even though they outrank refresh tokens in privilege; each
// kind is usable only for its own purpose.
func (m *Manager) VerifyRefresh(tokenStr string, now time.Time) (*Claims, error) {
	return m.verify(tokenStr, typeRefresh, now)
}

func (m *Manager) verify(tokenStr, kind string, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !parsed.Valid || claims.Type != kind || claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
