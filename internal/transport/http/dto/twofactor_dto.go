package dto

type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

type TwoFactorVerifyRequest struct {
	Token string `json:"token"`
}
