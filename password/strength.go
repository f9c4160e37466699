package password

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Policy describes the character-class and length rules a new password must
// satisfy.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireLower  bool
	RequireUpper  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPolicy requires 8 to 128 characters covering all four classes.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		MaxLength:     128,
		RequireLower:  true,
		RequireUpper:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// StrengthResult lists every rule a password violated. IsStrong is true only
// when Issues is empty.
type StrengthResult struct {
	IsStrong bool     `json:"isStrong"`
	Issues   []string `json:"issues,omitempty"`
}

// CheckStrength evaluates password against policy. Length is measured in
// runes. Issues are reported in a stable order: length bounds first, then
// lower, upper, digit and symbol coverage.
func CheckStrength(password string, policy Policy) StrengthResult {
	var (
		issues                       []string
		hasLower, hasUpper, hasDigit bool
		hasSymbol                    bool
	)

	n := utf8.RuneCountInString(password)
	if policy.MinLength > 0 && n < policy.MinLength {
		issues = append(issues, "password must be at least "+strconv.Itoa(policy.MinLength)+" characters")
	}
	if policy.MaxLength > 0 && n > policy.MaxLength {
		issues = append(issues, "password must be at most "+strconv.Itoa(policy.MaxLength)+" characters")
	}

	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r), unicode.IsSpace(r):
			hasSymbol = true
		}
	}

	if policy.RequireLower && !hasLower {
		issues = append(issues, "password must contain a lowercase letter")
	}
	if policy.RequireUpper && !hasUpper {
		issues = append(issues, "password must contain an uppercase letter")
	}
	if policy.RequireDigit && !hasDigit {
		issues = append(issues, "password must contain a digit")
	}
	if policy.RequireSymbol && !hasSymbol {
		issues = append(issues, "password must contain a symbol")
	}

	return StrengthResult{IsStrong: len(issues) == 0, Issues: issues}
}
