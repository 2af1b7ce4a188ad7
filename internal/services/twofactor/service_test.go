package twofactor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	pgrepo "github.com/pkoziel/ogloszybko/internal/repo/postgres"
)

type fakeSecretStore struct {
	creds   pgrepo.UserCredentials
	enabled bool
}

func (f *fakeSecretStore) GetCredentialsByID(_ context.Context, _ int64) (pgrepo.UserCredentials, error) {
	return f.creds, nil
}

func (f *fakeSecretStore) SetTwoFactorSecret(_ context.Context, _ int64, secret string) error {
	f.creds.TwoFactorSecret = &secret
	return nil
}

func (f *fakeSecretStore) EnableTwoFactor(_ context.Context, _ int64) error {
	f.enabled = true
	f.creds.TwoFactorEnabled = true
	return nil
}

func TestBeginSetupGeneratesSecretAndQR(t *testing.T) {
	store := &fakeSecretStore{creds: pgrepo.UserCredentials{ID: 1, Email: "a@b.pl"}}
	svc := NewService(store, "OgloSzybko")

	setup, err := svc.BeginSetup(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("begin setup: %v", err)
	}
	if setup.Secret == "" {
		t.Fatalf("expected non-empty secret")
	}
	if store.creds.TwoFactorSecret == nil || *store.creds.TwoFactorSecret != setup.Secret {
		t.Fatalf("secret was not persisted")
	}
	if !strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/") {
		t.Fatalf("unexpected otpauth url: %q", setup.OTPAuthURL)
	}
	if !strings.Contains(setup.OTPAuthURL, "a%40b.pl") && !strings.Contains(setup.OTPAuthURL, "a@b.pl") {
		t.Fatalf("account name missing from otpauth url: %q", setup.OTPAuthURL)
	}
	if !strings.HasPrefix(setup.QRCode, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %q", setup.QRCode[:min(len(setup.QRCode), 40)])
	}
}

func TestBeginSetupRejectsEnabledAccount(t *testing.T) {
	store := &fakeSecretStore{creds: pgrepo.UserCredentials{ID: 1, Email: "a@b.pl", TwoFactorEnabled: true}}
	svc := NewService(store, "OgloSzybko")

	if _, err := svc.BeginSetup(context.Background(), 1, ""); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("expected ErrAlreadyEnabled, got %v", err)
	}
}

func TestConfirmSetupFlow(t *testing.T) {
	store := &fakeSecretStore{creds: pgrepo.UserCredentials{ID: 1, Email: "a@b.pl"}}
	svc := NewService(store, "OgloSzybko")

	if err := svc.ConfirmSetup(context.Background(), 1, "123456"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured before setup, got %v", err)
	}

	setup, err := svc.BeginSetup(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("begin setup: %v", err)
	}

	if err := svc.ConfirmSetup(context.Background(), 1, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if store.enabled {
		t.Fatalf("two factor must not be enabled after a bad code")
	}

	code, err := totp.GenerateCodeCustom(setup.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	if err := svc.ConfirmSetup(context.Background(), 1, code); err != nil {
		t.Fatalf("confirm setup: %v", err)
	}
	if !store.enabled {
		t.Fatalf("two factor should be enabled after a valid code")
	}

	if err := svc.ConfirmSetup(context.Background(), 1, code); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("expected ErrAlreadyEnabled on repeat confirm, got %v", err)
	}
}

func TestVerifyCodeAcceptsSkewedCode(t *testing.T) {
	svc := NewService(nil, "OgloSzybko")
	secret := "JBSWY3DPEHPK3PXP"
	at := time.Date(2026, 8, 1, 12, 0, 15, 0, time.UTC)

	code, err := totp.GenerateCodeCustom(secret, at.Add(-30*time.Second), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	if !svc.VerifyCode(secret, code, at) {
		t.Fatalf("code from the previous period should verify with skew 1")
	}
	if svc.VerifyCode(secret, "12345", at) {
		t.Fatalf("five-digit code must be rejected")
	}
}
