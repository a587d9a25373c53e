package authcore

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps RFC 6238 code generation and validation for the MFA
// engine. All verification runs against a single caller-supplied instant so
// a code is judged once per operation, not once per comparison.
type totpManager struct {
	cfg TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{cfg: cfg}
}

type totpProvisioning struct {
	Secret string
	URI    string
	QRCode string // data:image/png;base64 URI, empty when rendering is disabled
}

// Generate mints a fresh secret for accountEmail and returns the
// otpauth:// provisioning URI plus an inline QR image for authenticator
// apps.
func (m *totpManager) Generate(accountEmail string) (*totpProvisioning, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.cfg.Issuer,
		AccountName: accountEmail,
		Period:      uint(m.cfg.Period),
		SecretSize:  uint(m.cfg.SecretSize),
		Digits:      otp.Digits(m.cfg.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	prov := &totpProvisioning{
		Secret: key.Secret(),
		URI:    key.URL(),
	}

	if m.cfg.QRCodeSize > 0 {
		img, err := key.Image(m.cfg.QRCodeSize, m.cfg.QRCodeSize)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		prov.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	return prov, nil
}

// Verify reports whether code matches secret at the given instant, allowing
// the configured steps of clock drift in either direction. Malformed codes
// and undecodable secrets verify false, never error.
func (m *totpManager) Verify(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    uint(m.cfg.Period),
		Skew:      uint(m.cfg.Skew),
		Digits:    otp.Digits(m.cfg.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
