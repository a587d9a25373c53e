package authcore

import (
	"strings"
	"testing"
	"time"
)

func testTOTPManager() *totpManager {
	return newTOTPManager(DefaultConfig().TOTP)
}

func TestTOTPGenerateProducesDistinctSecrets(t *testing.T) {
	m := testTOTPManager()

	first, err := m.Generate("buyer@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	second, err := m.Generate("buyer@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("expected distinct secrets per provisioning")
	}
	if !strings.HasPrefix(first.URI, "otpauth://totp/") {
		t.Fatalf("unexpected URI %q", first.URI)
	}
	if !strings.HasPrefix(first.QRCode, "data:image/png;base64,") {
		t.Fatal("expected inline PNG QR code")
	}
}

func TestTOTPGenerateSkipsQRWhenDisabled(t *testing.T) {
	cfg := DefaultConfig().TOTP
	cfg.QRCodeSize = 0
	m := newTOTPManager(cfg)

	prov, err := m.Generate("buyer@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if prov.QRCode != "" {
		t.Fatal("expected no QR image when rendering disabled")
	}
	if prov.URI == "" {
		t.Fatal("provisioning URI must always be present")
	}
}

func TestTOTPVerifySkewWindow(t *testing.T) {
	m := testTOTPManager()
	prov, err := m.Generate("buyer@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	at := time.Date(2025, 6, 15, 12, 0, 15, 0, time.UTC)

	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"previous step", -30 * time.Second, true},
		{"current step", 0, true},
		{"next step", 30 * time.Second, true},
		{"outside window behind", -90 * time.Second, false},
		{"outside window ahead", 90 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code := codeAt(t, prov.Secret, at.Add(tc.offset))
			if got := m.Verify(prov.Secret, code, at); got != tc.want {
				t.Fatalf("Verify(offset=%v) = %v, want %v", tc.offset, got, tc.want)
			}
		})
	}
}

func TestTOTPVerifyRejectsGarbage(t *testing.T) {
	m := testTOTPManager()
	prov, err := m.Generate("buyer@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	at := time.Now()

	for _, code := range []string{"", "abc", "12345", "1234567", "!!!!!!"} {
		if m.Verify(prov.Secret, code, at) {
			t.Fatalf("expected %q rejected", code)
		}
	}
	if m.Verify("not-base32-secret", "123456", at) {
		t.Fatal("expected undecodable secret to verify false")
	}
}
