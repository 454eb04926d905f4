package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	libOTP "github.com/pquerna/otp"
	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/account/outbound/memory"
	"github.com/shandysiswandi/idgate/internal/pkg/clock"
	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/idtoken"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/otp"
	"github.com/shandysiswandi/idgate/internal/pkg/replay"
	"github.com/shandysiswandi/idgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t0 sits on a 30s step boundary.
var t0 = time.Unix(1_700_000_010, 0).UTC()

const hmacSecret = "0123456789abcdef0123456789abcdef"

type seqID struct{ n atomic.Int64 }

func (s *seqID) Generate() int64 { return s.n.Add(1) }

// syncRunner runs tasks inline so published events are visible immediately.
type syncRunner struct{}

func (syncRunner) Go(ctx context.Context, f func(ctx context.Context) error) { _ = f(ctx) }

type recordedEvents struct {
	mu      sync.Mutex
	created []AccountCreatedEvent
	enabled []TOTPEnabledEvent
	err     error
}

func (r *recordedEvents) PublishAccountCreated(_ context.Context, msg AccountCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, msg)
	return r.err
}

func (r *recordedEvents) PublishTOTPEnabled(_ context.Context, msg TOTPEnabledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = append(r.enabled, msg)
	return r.err
}

type brokenRepo struct{}

func (brokenRepo) GetAccount(context.Context, string) (*entity.Account, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (brokenRepo) CreateAccountIfAbsent(context.Context, entity.Account) (*entity.Account, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (brokenRepo) UpdateAccountTOTP(context.Context, string, string, bool, time.Time) (*entity.Account, error) {
	return nil, errors.New("dial tcp: connection refused")
}

type fixture struct {
	uc     *Usecase
	store  *memory.Store
	clock  *clock.Fixed
	totp   *otp.TOTP
	events *recordedEvents
	tokens *idtoken.HMAC
}

func newFixture(t *testing.T, yaml string) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	clk := clock.NewFixed(t0)
	tokens, err := idtoken.NewHMAC(idtoken.HMACConfig{Secret: []byte(hmacSecret), Issuer: "test", Clock: clk})
	require.NoError(t, err)

	f := &fixture{
		store:  memory.NewStore(),
		clock:  clk,
		totp:   otp.NewTOTP("MFA App", 30, 1, libOTP.DigitsSix),
		events: &recordedEvents{},
		tokens: tokens,
	}
	f.uc = New(Dependency{
		RepoDB:        f.store,
		RepoMessaging: f.events,
		Validator:     v,
		Config:        cfg,
		UID:           &seqID{},
		Totp:          f.totp,
		Clock:         clk,
		Verifier:      tokens,
		Replay:        replay.NewMemory(clk),
		Instrument:    instrument.NewNoop(),
		Goroutine:     syncRunner{},
	})

	return f
}

func (f *fixture) code(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	c, err := f.totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return c
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	return gerr.StatusCode()
}

func TestResolveOrCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	first, err := f.uc.ResolveOrCreate(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.False(t, first.Account.TOTPEnabled)
	assert.Len(t, first.Account.TOTPSecret, 32)
	assert.Equal(t, t0, first.Account.CreatedAt)

	second, err := f.uc.ResolveOrCreate(ctx, "  Alice@Example.COM ")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Account, second.Account)

	assert.Equal(t, 1, f.store.Len())
	require.Len(t, f.events.created, 1)
	assert.Equal(t, "alice@example.com", f.events.created[0].IdentityKey)
}

func TestResolveOrCreate_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	var wg sync.WaitGroup
	secrets := make([]string, 16)
	for i := range secrets {
		wg.Go(func() {
			out, err := f.uc.ResolveOrCreate(ctx, "carol@example.com")
			if assert.NoError(t, err) {
				secrets[i] = out.Account.TOTPSecret
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.Len())
	for _, s := range secrets {
		assert.Equal(t, secrets[0], s)
	}
	assert.Len(t, f.events.created, 1)
}

func TestResolveOrCreate_EmptyKey(t *testing.T) {
	_, err := newFixture(t, "modules: {}").uc.ResolveOrCreate(context.Background(), "   ")
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestIdentityResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	token, err := f.tokens.Sign(idtoken.Identity{Subject: "uid-1", Email: "Bob@Example.com"}, time.Hour)
	require.NoError(t, err)

	out, err := f.uc.IdentityResolve(ctx, IdentityResolveInput{Token: "Bearer " + token})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", out.Account.IdentityKey)
	assert.True(t, out.Created)
}

func TestIdentityResolve_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	noEmail, err := f.tokens.Sign(idtoken.Identity{Subject: "uid-1"}, time.Hour)
	require.NoError(t, err)

	expired, err := f.tokens.Sign(idtoken.Identity{Subject: "uid-1", Email: "bob@example.com"}, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		before func()
		status int
	}{
		{"garbage", "not-a-jwt", nil, http.StatusUnauthorized},
		{"no email", noEmail, nil, http.StatusUnauthorized},
		{"expired", expired, func() { f.clock.Advance(time.Hour) }, http.StatusUnauthorized},
		{"blank", "   ", nil, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.before != nil {
				tt.before()
			}

			_, err := f.uc.IdentityResolve(ctx, IdentityResolveInput{Token: tt.token})
			require.Error(t, err)
			assert.Equal(t, tt.status, statusOf(t, err))
			if tt.status == http.StatusUnauthorized {
				assert.ErrorIs(t, err, entity.ErrIdentityTokenInvalid)
			}
		})
	}

	assert.Zero(t, f.store.Len())
}

func TestAccountGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	_, err := f.uc.AccountGet(ctx, AccountGetInput{IdentityKey: "nobody@example.com"})
	assert.ErrorIs(t, err, entity.ErrAccountNotFound)

	_, err = f.uc.ResolveOrCreate(ctx, "alice@example.com")
	require.NoError(t, err)

	acc, err := f.uc.AccountGet(ctx, AccountGetInput{IdentityKey: "ALICE@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.IdentityKey)
}

func TestTOTPEnable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	_, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "nobody@example.com"})
	assert.ErrorIs(t, err, entity.ErrAccountNotFound)

	created, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)

	first, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, created.Account.TOTPSecret, first.Secret)
	assert.NotEmpty(t, first.QRCode)

	p, err := otp.ParseURI(first.ProvisioningURI)
	require.NoError(t, err)
	assert.Equal(t, first.Secret, p.Secret)
	assert.Equal(t, "bob@example.com", p.AccountName)
	assert.Equal(t, "MFA App", p.Issuer)

	second, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, second.Secret)

	acc, err := f.uc.AccountGet(ctx, AccountGetInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)
	assert.True(t, acc.TOTPEnabled)
	assert.Equal(t, second.Secret, acc.TOTPSecret)

	require.Len(t, f.events.enabled, 2)
	assert.Equal(t, TOTPEnabledEvent{AccountID: acc.ID, IdentityKey: "bob@example.com", EnabledAt: t0}, f.events.enabled[0])
}

func TestTOTPVerify_NotRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	_, err := f.uc.ResolveOrCreate(ctx, "alice@example.com")
	require.NoError(t, err)

	for _, code := range []string{"000000", "", "abc", strings.Repeat("9", 17)} {
		out, err := f.uc.TOTPVerify(ctx, TOTPVerifyInput{IdentityKey: "alice@example.com", Code: code})
		require.NoError(t, err, "code %q", code)
		assert.False(t, out.Required, "code %q", code)
	}
}

func TestTOTPVerify_Window(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	_, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)
	enabled, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)

	code := f.code(t, enabled.Secret, t0)

	tests := []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{"same step", 0, true},
		{"one step later", 30 * time.Second, true},
		{"one step earlier", -30 * time.Second, true},
		{"three steps later", 90 * time.Second, false},
		{"two steps earlier", -60 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Set(t0.Add(tt.offset))

			out, err := f.uc.TOTPVerify(ctx, TOTPVerifyInput{IdentityKey: "bob@example.com", Code: code})
			if tt.ok {
				require.NoError(t, err)
				assert.True(t, out.Required)
				return
			}
			assert.ErrorIs(t, err, entity.ErrInvalidCode)
			assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		})
	}
}

func TestTOTPVerify_ReenableInvalidatesOldSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	_, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)
	first, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)
	second, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)

	_, err = f.uc.TOTPVerify(ctx, TOTPVerifyInput{IdentityKey: "bob@example.com", Code: f.code(t, first.Secret, t0)})
	assert.ErrorIs(t, err, entity.ErrInvalidCode)

	_, err = f.uc.TOTPVerify(ctx, TOTPVerifyInput{IdentityKey: "bob@example.com", Code: f.code(t, second.Secret, t0)})
	assert.NoError(t, err)
}

func TestTOTPVerify_NotFound(t *testing.T) {
	_, err := newFixture(t, "modules: {}").uc.TOTPVerify(context.Background(), TOTPVerifyInput{IdentityKey: "nobody@example.com", Code: "123456"})
	assert.ErrorIs(t, err, entity.ErrAccountNotFound)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestTOTPVerify_Validation(t *testing.T) {
	_, err := newFixture(t, "modules: {}").uc.TOTPVerify(context.Background(), TOTPVerifyInput{Code: "123456"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestTOTPVerify_MalformedCodeOnEnabledAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")

	_, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	require.NoError(t, err)

	for _, code := range []string{"", "abc", strings.Repeat("9", 17)} {
		_, err := f.uc.TOTPVerify(ctx, TOTPVerifyInput{IdentityKey: "bob@example.com", Code: code})
		assert.ErrorIs(t, err, entity.ErrInvalidCode, "code %q", code)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err), "code %q", code)
	}
}

func TestTOTPVerify_Replay(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		secondUse bool
	}{
		{"reuse allowed by default", "modules: {}", true},
		{"reuse rejected when protected", "modules: {account: {totp: {replay_protection: true}}}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, tt.yaml)

			_, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
			require.NoError(t, err)
			enabled, err := f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
			require.NoError(t, err)

			in := TOTPVerifyInput{IdentityKey: "bob@example.com", Code: f.code(t, enabled.Secret, t0)}

			_, err = f.uc.TOTPVerify(ctx, in)
			require.NoError(t, err)

			_, err = f.uc.TOTPVerify(ctx, in)
			if tt.secondUse {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, entity.ErrInvalidCode)
			}
		})
	}
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")
	f.uc.repoDB = brokenRepo{}

	_, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
	assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))

	_, err = f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	assert.ErrorIs(t, err, entity.ErrStorageUnavailable)

	_, err = f.uc.TOTPVerify(ctx, TOTPVerifyInput{IdentityKey: "bob@example.com", Code: "123456"})
	assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
}

func TestPublishFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "modules: {}")
	f.events.err = errors.New("broker down")

	out, err := f.uc.ResolveOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, out.Created)

	_, err = f.uc.TOTPEnable(ctx, TOTPEnableInput{IdentityKey: "bob@example.com"})
	assert.NoError(t, err)
}
