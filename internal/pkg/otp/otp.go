package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// SecretSize is the number of random bytes behind every generated secret
// (160 bits, the RFC 4226 recommendation).
const SecretSize = 20

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

var (
	// ErrInvalidSecret is returned when a secret is not valid base32.
	ErrInvalidSecret = errors.New("otp: secret is not valid base32")
	// ErrNotTOTP is returned by ParseURI for non-totp otpauth URIs.
	ErrNotTOTP = errors.New("otp: uri is not an otpauth totp uri")
)

// OTP defines the contract for TOTP operations.
type OTP interface {
	// GenerateSecret returns a fresh base32 secret.
	GenerateSecret() (string, error)
	// ProvisioningURI builds the otpauth:// URI for secret and accountName.
	ProvisioningURI(secret, accountName string) (string, error)
	// Validate reports whether code is valid for secret at the given time.
	Validate(code, secret string, at time.Time) bool
	// MatchStep is Validate that also returns the matched time-step counter.
	MatchStep(code, secret string, at time.Time) (uint64, bool)
	// GenerateCode returns the code for secret at the given time.
	GenerateCode(secret string, at time.Time) (string, error)
	// Period returns the step length.
	Period() time.Duration
	// Skew returns how many steps either side of now are accepted.
	Skew() uint
}

// Provisioning is the decoded content of an otpauth URI.
type Provisioning struct {
	Secret      string
	AccountName string
	Issuer      string
	Algorithm   string
	Digits      int
	Period      uint64
}

// TOTP implements OTP using the Time-based One-Time Password algorithm.
type TOTP struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
	rand   io.Reader
}

// Option customizes a TOTP.
type Option func(*TOTP)

// WithRand replaces the secret entropy source.
func WithRand(r io.Reader) Option {
	return func(o *TOTP) { o.rand = r }
}

// NewTOTP constructs a TOTP.
//
// Digits other than 6 or 8 fall back to 6 and a zero period to 30 seconds.
// skew is used as given, so 0 accepts only the current step.
func NewTOTP(issuer string, period, skew uint, digits otp.Digits, opts ...Option) *TOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}

	if period == 0 {
		period = 30
	}

	o := &TOTP{
		issuer: issuer,
		period: period,
		skew:   skew,
		digits: digits,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Period returns the step length.
func (o *TOTP) Period() time.Duration { return time.Duration(o.period) * time.Second }

// Skew returns the accepted drift in steps.
func (o *TOTP) Skew() uint { return o.skew }

// GenerateSecret returns SecretSize random bytes encoded as unpadded base32.
func (o *TOTP) GenerateSecret() (string, error) {
	buf := make([]byte, SecretSize)
	if _, err := io.ReadFull(o.rand, buf); err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}
	return b32NoPadding.EncodeToString(buf), nil
}

// ProvisioningURI builds
//
//	otpauth://totp/<issuer>:<account>?algorithm=SHA1&digits=6&issuer=<issuer>&period=30&secret=<secret>
//
// The output is deterministic for the same inputs.
func (o *TOTP) ProvisioningURI(secret, accountName string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      o.period,
		Secret:      raw,
		Digits:      o.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}

	return key.URL(), nil
}

// Validate reports whether code matches secret at any step in [now-skew, now+skew].
func (o *TOTP) Validate(code, secret string, at time.Time) bool {
	_, ok := o.MatchStep(code, secret, at)
	return ok
}

// MatchStep checks the steps around at and returns the counter that matched.
// Malformed codes are rejected before any HMAC is computed.
func (o *TOTP) MatchStep(code, secret string, at time.Time) (uint64, bool) {
	code = strings.TrimSpace(code)
	if !o.wellFormed(code) {
		return 0, false
	}

	counter := uint64(at.Unix()) / uint64(o.period)
	opts := o.validateOpts()

	matched, found := uint64(0), false
	for delta := -int64(o.skew); delta <= int64(o.skew); delta++ {
		step := int64(counter) + delta
		if step < 0 {
			continue
		}

		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*int64(o.period), 0).UTC(), opts)
		if err != nil {
			return 0, false
		}

		// every step is checked so timing does not depend on which one matched
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 && !found {
			matched, found = uint64(step), true
		}
	}

	return matched, found
}

// GenerateCode returns the code for secret at the given time.
func (o *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, o.validateOpts())
}

// ParseURI decodes an otpauth totp URI.
func ParseURI(uri string) (Provisioning, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return Provisioning{}, err
	}
	if key.Type() != "totp" {
		return Provisioning{}, ErrNotTOTP
	}

	return Provisioning{
		Secret:      key.Secret(),
		AccountName: key.AccountName(),
		Issuer:      key.Issuer(),
		Algorithm:   key.Algorithm().String(),
		Digits:      key.Digits().Length(),
		Period:      key.Period(),
	}, nil
}

func (o *TOTP) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (o *TOTP) wellFormed(code string) bool {
	if len(code) != o.digits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.TrimRight(s, "=")
	raw, err := b32NoPadding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}
