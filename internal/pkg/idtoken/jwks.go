package idtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc"
	jwtv4 "github.com/golang-jwt/jwt/v4"
)

// JWKSConfig configures a remote key set verifier.
type JWKSConfig struct {
	URL             string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
}

type jwksClaims struct {
	jwtv4.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// JWKS verifies RS256 tokens against a JSON Web Key Set.
type JWKS struct {
	jwks     *keyfunc.JWKS
	parser   *jwtv4.Parser
	issuer   string
	audience string
}

// NewJWKS fetches the key set at cfg.URL and keeps it refreshed in the
// background until Close.
func NewJWKS(ctx context.Context, cfg JWKSConfig) (*JWKS, error) {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	set, err := keyfunc.Get(cfg.URL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   interval,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			slog.WarnContext(ctx, "jwks refresh failed", "url", cfg.URL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("idtoken: fetch jwks: %w", err)
	}

	return newJWKS(set, cfg.Issuer, cfg.Audience), nil
}

// NewJWKSFromJSON builds a verifier over a static key set document.
func NewJWKSFromJSON(raw json.RawMessage, issuer, audience string) (*JWKS, error) {
	set, err := keyfunc.NewJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("idtoken: parse jwks: %w", err)
	}
	return newJWKS(set, issuer, audience), nil
}

func newJWKS(set *keyfunc.JWKS, issuer, audience string) *JWKS {
	return &JWKS{
		jwks:     set,
		parser:   jwtv4.NewParser(jwtv4.WithValidMethods([]string{jwtv4.SigningMethodRS256.Alg()})),
		issuer:   issuer,
		audience: audience,
	}
}

// Verify implements Verifier.
func (v *JWKS) Verify(_ context.Context, token string) (Identity, error) {
	token, err := normalizeToken(token)
	if err != nil {
		return Identity{}, err
	}

	var claims jwksClaims
	parsed, err := v.parser.ParseWithClaims(token, &claims, v.jwks.Keyfunc)
	if err != nil {
		var verr *jwtv4.ValidationError
		if errors.As(err, &verr) && verr.Errors&jwtv4.ValidationErrorExpired != 0 {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, invalid(err)
	}
	if !parsed.Valid {
		return Identity{}, ErrTokenInvalid
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return Identity{}, invalid(errors.New("exp and iat are required"))
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Identity{}, invalid(fmt.Errorf("issuer %q not accepted", claims.Issuer))
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return Identity{}, invalid(errors.New("audience not accepted"))
	}

	return identityFrom(claims.Subject, claims.Email, claims.EmailVerified, claims.Issuer)
}

// Close stops the background refresh.
func (v *JWKS) Close() error {
	v.jwks.EndBackground()
	return nil
}
