package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/account/usecase"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUC struct {
	resolveIn usecase.IdentityResolveInput
	enableIn  usecase.TOTPEnableInput
	verifyIn  usecase.TOTPVerifyInput

	resolveOut *usecase.IdentityResolveOutput
	enableOut  *usecase.TOTPEnableOutput
	verifyOut  *usecase.TOTPVerifyOutput
	err        error
}

func (f *fakeUC) IdentityResolve(_ context.Context, in usecase.IdentityResolveInput) (*usecase.IdentityResolveOutput, error) {
	f.resolveIn = in
	return f.resolveOut, f.err
}

func (f *fakeUC) TOTPEnable(_ context.Context, in usecase.TOTPEnableInput) (*usecase.TOTPEnableOutput, error) {
	f.enableIn = in
	return f.enableOut, f.err
}

func (f *fakeUC) TOTPVerify(_ context.Context, in usecase.TOTPVerifyInput) (*usecase.TOTPVerifyOutput, error) {
	f.verifyIn = in
	return f.verifyOut, f.err
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func newServer(f *fakeUC, verifyPerMinute int) *router.Router {
	r := router.NewRouter(router.Config{UUID: fixedID("cid"), Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, f, verifyPerMinute)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4242"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestIdentity(t *testing.T) {
	f := &fakeUC{resolveOut: &usecase.IdentityResolveOutput{
		Account: entity.Account{IdentityKey: "alice@example.com"},
		Created: true,
	}}
	srv := newServer(f, 0)

	for _, path := range []string{"/auth/identity", "/auth/firebase"} {
		code, body := post(t, srv, path, `{"token":"tok-1"}`)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "tok-1", f.resolveIn.Token)
		assert.Equal(t, map[string]any{
			"success":      true,
			"identity_key": "alice@example.com",
			"email":        "alice@example.com",
			"totp_enabled": false,
		}, body["data"])
	}
}

func TestIdentity_ErrorPassThrough(t *testing.T) {
	f := &fakeUC{err: entity.NewIdentityTokenInvalid(nil)}

	code, body := post(t, newServer(f, 0), "/auth/identity", `{"token":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Identity token invalid", body["message"])
}

func TestIdentity_BadBody(t *testing.T) {
	srv := newServer(&fakeUC{}, 0)

	code, _ := post(t, srv, "/auth/identity", `{"token":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(t, srv, "/auth/identity", `{"token":"a","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEnableTOTP(t *testing.T) {
	f := &fakeUC{enableOut: &usecase.TOTPEnableOutput{
		Secret:          "JBSWY3DPEHPK3PXP",
		ProvisioningURI: "otpauth://totp/x",
		QRCode:          "iVBOR",
	}}
	srv := newServer(f, 0)

	code, body := post(t, srv, "/auth/enable-totp", `{"identity_key":"bob@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bob@example.com", f.enableIn.IdentityKey)
	assert.Equal(t, "TOTP enabled", body["message"])
	assert.Equal(t, map[string]any{
		"secret":           "JBSWY3DPEHPK3PXP",
		"provisioning_uri": "otpauth://totp/x",
		"qr_code":          "iVBOR",
	}, body["data"])

	_, _ = post(t, srv, "/auth/enable-totp", `{"email":"legacy@example.com"}`)
	assert.Equal(t, "legacy@example.com", f.enableIn.IdentityKey)
}

func TestEnableTOTP_NotFound(t *testing.T) {
	code, body := post(t, newServer(&fakeUC{err: entity.NewAccountNotFound()}, 0), "/auth/enable-totp", `{"identity_key":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Account not found", body["message"])
}

func TestVerifyTOTP(t *testing.T) {
	tests := []struct {
		name     string
		required bool
		want     string
	}{
		{"not required", false, msgTOTPNotRequired},
		{"verified", true, msgLoginComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUC{verifyOut: &usecase.TOTPVerifyOutput{Required: tt.required}}

			code, body := post(t, newServer(f, 0), "/auth/verify-totp", `{"identity_key":"bob@example.com","code":"123456"}`)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.want, body["message"])
			assert.Equal(t, map[string]any{"success": true, "message": tt.want}, body["data"])
			assert.Equal(t, usecase.TOTPVerifyInput{IdentityKey: "bob@example.com", Code: "123456"}, f.verifyIn)
		})
	}
}

func TestVerifyTOTP_InvalidCode(t *testing.T) {
	code, body := post(t, newServer(&fakeUC{err: entity.NewInvalidCode()}, 0), "/auth/verify-totp", `{"email":"bob@example.com","code":"000000"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid TOTP code", body["message"])
}

func TestVerifyTOTP_RateLimited(t *testing.T) {
	f := &fakeUC{verifyOut: &usecase.TOTPVerifyOutput{}}
	srv := newServer(f, 2)

	for range 2 {
		code, _ := post(t, srv, "/auth/verify-totp", `{"identity_key":"bob@example.com","code":"123456"}`)
		assert.Equal(t, http.StatusOK, code)
	}

	code, body := post(t, srv, "/auth/verify-totp", `{"identity_key":"bob@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many verification attempts", body["message"])

	// other routes are not limited
	f.enableOut = &usecase.TOTPEnableOutput{}
	code, _ = post(t, srv, "/auth/enable-totp", `{"identity_key":"bob@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
}
