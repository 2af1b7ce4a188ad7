package twofactor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
)

var (
	ErrAlreadyEnabled = errors.New("two factor already enabled")
	ErrNotConfigured  = errors.New("two factor is not configured")
	ErrInvalidCode    = errors.New("invalid two factor code")
)

type SecretStore interface {
	GetCredentialsByID(ctx context.Context, id int64) (pgrepo.UserCredentials, error)
	SetTwoFactorSecret(ctx context.Context, id int64, secret string) error
	EnableTwoFactor(ctx context.Context, id int64) error
}

type Service struct {
	store  SecretStore
	issuer string
	now    func() time.Time
}

// Setup holds the provisioning material returned to the client once, at
// enrollment time. The secret is never exposed again afterwards.
type Setup struct {
	Secret     string
	OTPAuthURL string
	QRCode     string
}

func NewService(store SecretStore, issuer string) *Service {
	if strings.TrimSpace(issuer) == "" {
		issuer = "OgloSzybko"
	}

	return &Service{
		store:  store,
		issuer: issuer,
		now:    time.Now,
	}
}

// BeginSetup generates a fresh TOTP secret for the user and stores it in a
// pending state. Enrollment completes only after ConfirmSetup verifies a code
// produced from this secret.
func (s *Service) BeginSetup(ctx context.Context, userID int64, accountName string) (Setup, error) {
	if s.store == nil {
		return Setup{}, fmt.Errorf("two factor store is nil")
	}

	creds, err := s.store.GetCredentialsByID(ctx, userID)
	if err != nil {
		return Setup{}, fmt.Errorf("load credentials: %w", err)
	}
	if creds.TwoFactorEnabled {
		return Setup{}, ErrAlreadyEnabled
	}

	if strings.TrimSpace(accountName) == "" {
		accountName = creds.Email
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Setup{}, fmt.Errorf("generate totp secret: %w", err)
	}

	if err := s.store.SetTwoFactorSecret(ctx, userID, key.Secret()); err != nil {
		return Setup{}, fmt.Errorf("store totp secret: %w", err)
	}

	qr, err := qrDataURL(key.URL())
	if err != nil {
		return Setup{}, fmt.Errorf("render qr code: %w", err)
	}

	return Setup{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     qr,
	}, nil
}

// ConfirmSetup checks the code against the pending secret and, on success,
// flips 2FA on for the account.
func (s *Service) ConfirmSetup(ctx context.Context, userID int64, code string) error {
	if s.store == nil {
		return fmt.Errorf("two factor store is nil")
	}

	creds, err := s.store.GetCredentialsByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds.TwoFactorEnabled {
		return ErrAlreadyEnabled
	}
	if creds.TwoFactorSecret == nil || *creds.TwoFactorSecret == "" {
		return ErrNotConfigured
	}

	if !s.VerifyCode(*creds.TwoFactorSecret, code, s.now().UTC()) {
		return ErrInvalidCode
	}

	if err := s.store.EnableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}

	return nil
}

// VerifyCode validates a 6-digit TOTP code with one period of clock skew in
// either direction.
func (s *Service) VerifyCode(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != 6 {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func qrDataURL(otpauthURL string) (string, error) {
	img, err := qrcode.Encode(otpauthURL, qrcode.Medium, 240)
	if err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img), nil
}
