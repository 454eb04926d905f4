package inbound

type IdentityRequest struct {
	Token string `json:"token"`
}

type IdentityResponse struct {
	Success     bool   `json:"success"`
	IdentityKey string `json:"identity_key"`
	// Email mirrors IdentityKey for clients built against /auth/firebase.
	Email       string `json:"email"`
	TOTPEnabled bool   `json:"totp_enabled"`
}

func (IdentityResponse) Message() string { return "Identity verified" }

// EnableTOTPRequest accepts the legacy email field when identity_key is empty.
type EnableTOTPRequest struct {
	IdentityKey string `json:"identity_key"`
	Email       string `json:"email"`
}

type EnableTOTPResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code,omitempty"`
}

func (EnableTOTPResponse) Message() string { return "TOTP enabled" }

type VerifyTOTPRequest struct {
	IdentityKey string `json:"identity_key"`
	Email       string `json:"email"`
	Code        string `json:"code"`
}

type VerifyTOTPResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"message"`
}

func (v VerifyTOTPResponse) Message() string { return v.Result }

func identityKeyOf(identityKey, email string) string {
	if identityKey != "" {
		return identityKey
	}
	return email
}
