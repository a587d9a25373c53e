package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy is the strength check applied to new passwords before hashing.
// Zero values disable individual requirements.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	RejectCommon     bool
}

// commonPasswords are rejected outright when RejectCommon is set, before any
// character-class requirement is considered satisfied. Matching is
// case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"passw0rd":  {},
	"123456":    {},
	"12345678":  {},
	"123456789": {},
	"qwerty":    {},
	"qwerty123": {},
	"abc123":    {},
	"letmein":   {},
	"welcome":   {},
	"welcome1":  {},
	"iloveyou":  {},
	"admin":     {},
	"monkey":    {},
	"dragon":    {},
	"sunshine":  {},
	"princess":  {},
	"football":  {},
	"trustno1":  {},
}

// PolicyError lists every requirement the candidate password missed, so the
// caller can surface all of them at once rather than one per attempt.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password does not meet policy: %s", strings.Join(e.Violations, "; "))
}

// Validate checks candidate against the policy and returns a *PolicyError
// describing every unmet requirement, or nil.
func (p Policy) Validate(candidate string) error {
	var violations []string

	if p.MinLength > 0 && len(candidate) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}

	if p.RejectCommon {
		if _, ok := commonPasswords[strings.ToLower(candidate)]; ok {
			violations = append(violations, "is too common")
		}
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
