package idtoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSecretTooShort is returned for HMAC secrets under 32 bytes.
var ErrSecretTooShort = errors.New("idtoken: hmac secret must be at least 32 bytes")

type clocker interface {
	Now() time.Time
}

// HMACConfig configures the shared secret verifier.
type HMACConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Clock    clocker
}

type hmacClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// HMAC verifies and signs HS256 identity tokens.
type HMAC struct {
	secret   []byte
	issuer   string
	audience string
	clock    clocker
}

// NewHMAC returns an HS256 verifier.
func NewHMAC(cfg HMACConfig) (*HMAC, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrSecretTooShort
	}

	return &HMAC{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    cfg.Clock,
	}, nil
}

// Sign issues a token for id valid for ttl.
func (h *HMAC) Sign(id Identity, ttl time.Duration) (string, error) {
	now := h.clock.Now()

	claims := hmacClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    h.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
	}
	if h.audience != "" {
		claims.Audience = jwt.ClaimStrings{h.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Verify implements Verifier.
func (h *HMAC) Verify(_ context.Context, token string) (Identity, error) {
	token, err := normalizeToken(token)
	if err != nil {
		return Identity{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.clock.Now),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}
	if h.audience != "" {
		opts = append(opts, jwt.WithAudience(h.audience))
	}

	var claims hmacClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, invalid(err)
	}
	if !parsed.Valid {
		return Identity{}, ErrTokenInvalid
	}

	return identityFrom(claims.Subject, claims.Email, claims.EmailVerified, claims.Issuer)
}
