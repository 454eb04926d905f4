package inbound

import (
	"github.com/shandysiswandi/idgate/internal/account/usecase"
	"github.com/shandysiswandi/idgate/internal/pkg/router"
)

const (
	msgTOTPNotRequired = "TOTP not required"
	msgLoginComplete   = "Login complete"
)

// HTTPEndpoint exposes the identity and TOTP handlers.
type HTTPEndpoint struct {
	uc uc
}

// Identity verifies an identity token and resolves the bound account.
func (h *HTTPEndpoint) Identity(r *router.Request) (any, error) {
	var req IdentityRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.IdentityResolve(r.Context(), usecase.IdentityResolveInput{Token: req.Token})
	if err != nil {
		return nil, err
	}

	return IdentityResponse{
		Success:     true,
		IdentityKey: out.Account.IdentityKey,
		Email:       out.Account.IdentityKey,
		TOTPEnabled: out.Account.TOTPEnabled,
	}, nil
}

// EnableTOTP issues a new secret and provisioning URI.
func (h *HTTPEndpoint) EnableTOTP(r *router.Request) (any, error) {
	var req EnableTOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.TOTPEnable(r.Context(), usecase.TOTPEnableInput{
		IdentityKey: identityKeyOf(req.IdentityKey, req.Email),
	})
	if err != nil {
		return nil, err
	}

	return EnableTOTPResponse{
		Secret:          out.Secret,
		ProvisioningURI: out.ProvisioningURI,
		QRCode:          out.QRCode,
	}, nil
}

func (h *HTTPEndpoint) VerifyTOTP(r *router.Request) (any, error) {
	var req VerifyTOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.TOTPVerify(r.Context(), usecase.TOTPVerifyInput{
		IdentityKey: identityKeyOf(req.IdentityKey, req.Email),
		Code:        req.Code,
	})
	if err != nil {
		return nil, err
	}

	if !out.Required {
		return VerifyTOTPResponse{Success: true, Result: msgTOTPNotRequired}, nil
	}
	return VerifyTOTPResponse{Success: true, Result: msgLoginComplete}, nil
}
