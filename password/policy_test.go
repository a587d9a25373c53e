package password

import (
	"errors"
	"strings"
	"testing"
)

func TestPolicyValidate(t *testing.T) {
	policy := Policy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
	}

	cases := []struct {
		name      string
		candidate string
		ok        bool
	}{
		{"meets all requirements", "Str0ngpass", true},
		{"too short", "Ab1", false},
		{"missing uppercase", "weakpass1", false},
		{"missing lowercase", "WEAKPASS1", false},
		{"missing digit", "Weakpassword", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Validate(tc.candidate)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected violation")
			}
		})
	}
}

func TestPolicyReportsAllViolationsAtOnce(t *testing.T) {
	policy := Policy{
		MinLength:        8,
		RequireUppercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}

	err := policy.Validate("abc")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *PolicyError, got %v", err)
	}
	if len(policyErr.Violations) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(policyErr.Violations), policyErr.Violations)
	}
	if !strings.Contains(policyErr.Error(), "at least 8 characters") {
		t.Fatalf("unexpected message: %s", policyErr.Error())
	}
}

func TestPolicyRejectsCommonPasswords(t *testing.T) {
	policy := Policy{RejectCommon: true}

	for _, candidate := range []string{"password", "Password", "QWERTY123", "letmein"} {
		if err := policy.Validate(candidate); err == nil {
			t.Fatalf("expected %q rejected as common", candidate)
		}
	}
	if err := policy.Validate("clearly-not-on-the-list"); err != nil {
		t.Fatalf("expected uncommon password accepted, got %v", err)
	}
}

func TestZeroPolicyAcceptsAnything(t *testing.T) {
	var policy Policy
	if err := policy.Validate(""); err != nil {
		t.Fatalf("expected zero policy to accept empty password, got %v", err)
	}
}
