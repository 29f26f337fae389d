// Package policy scores candidate passwords and lists every rule they break.
// It is pure: reuse checks against stored hashes live in the service layer.
package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMinLength = 8
	DefaultMaxLength = 128

	// minPersonalToken is the shortest email local part or name token that
	// counts as personal information.
	minPersonalToken = 3
)

// Symbols is the punctuation set that satisfies the symbol rule.
const Symbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

// Violation codes, stable for clients rendering a checklist.
const (
	ViolationTooShort       = "too_short"
	ViolationTooLong        = "too_long"
	ViolationMissingUpper   = "missing_uppercase"
	ViolationMissingLower   = "missing_lowercase"
	ViolationMissingDigit   = "missing_digit"
	ViolationMissingSymbol  = "missing_symbol"
	ViolationCommonPassword = "common_password"
	ViolationPersonalInfo   = "contains_personal_info"
)

type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

// Context carries the account attributes a password must not contain.
type Context struct {
	Email string
	Name  string
}

// Result is the full checklist for one candidate.
type Result struct {
	Valid      bool
	Violations []string
	Score      int
	Strength   Strength
}

// Policy holds the complexity rules. The zero value is not usable; build one
// with New.
type Policy struct {
	MinLength int
	MaxLength int

	blocklist []string
}

// New returns a Policy using the built-in common-password list extended with
// extra entries.
func New(extra ...string) *Policy {
	p := &Policy{MinLength: DefaultMinLength, MaxLength: DefaultMaxLength}
	seen := make(map[string]struct{}, len(defaultBlocklist)+len(extra))
	for _, list := range [][]string{defaultBlocklist, extra} {
		for _, w := range list {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			p.blocklist = append(p.blocklist, w)
		}
	}
	return p
}

// Validate checks every rule independently so the caller sees all of them.
func (p *Policy) Validate(password string, c Context) Result {
	var violations []string

	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		violations = append(violations, ViolationTooShort)
	}
	if n > p.MaxLength {
		violations = append(violations, ViolationTooLong)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(Symbols, r):
			symbol = true
		}
	}
	if !upper {
		violations = append(violations, ViolationMissingUpper)
	}
	if !lower {
		violations = append(violations, ViolationMissingLower)
	}
	if !digit {
		violations = append(violations, ViolationMissingDigit)
	}
	if !symbol {
		violations = append(violations, ViolationMissingSymbol)
	}

	folded := strings.ToLower(password)
	common := p.isCommon(folded)
	if common {
		violations = append(violations, ViolationCommonPassword)
	}
	if containsPersonal(folded, c) {
		violations = append(violations, ViolationPersonalInfo)
	}

	classes := 0
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			classes++
		}
	}
	s := score([]rune(folded), classes, common)

	return Result{
		Valid:      len(violations) == 0,
		Violations: violations,
		Score:      s,
		Strength:   band(s),
	}
}

func (p *Policy) isCommon(folded string) bool {
	for _, w := range p.blocklist {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

func containsPersonal(folded string, c Context) bool {
	var tokens []string
	if local, _, ok := strings.Cut(strings.ToLower(strings.TrimSpace(c.Email)), "@"); ok {
		tokens = append(tokens, local)
	}
	tokens = append(tokens, strings.Fields(strings.ToLower(c.Name))...)

	for _, t := range tokens {
		if utf8.RuneCountInString(t) >= minPersonalToken && strings.Contains(folded, t) {
			return true
		}
	}
	return false
}

// score is a 0..100 heuristic: length tier plus class bonuses, minus
// penalties for runs of one character and for keyboard-free sequences such
// as "abc" or "321".
func score(pw []rune, classes int, common bool) int {
	var s int
	switch n := len(pw); {
	case n >= 20:
		s = 50
	case n >= 16:
		s = 40
	case n >= 12:
		s = 30
	case n >= 8:
		s = 20
	default:
		s = n * 2
	}

	s += classes * 10
	if classes == 4 {
		s += 10
	}

	s -= 10 * min(repeats(pw), 3)
	s -= 10 * min(sequences(pw), 3)
	if common {
		s -= 30
	}
	return max(0, min(100, s))
}

// repeats counts windows of three identical characters.
func repeats(pw []rune) int {
	n := 0
	for i := 2; i < len(pw); i++ {
		if pw[i] == pw[i-1] && pw[i-1] == pw[i-2] {
			n++
		}
	}
	return n
}

// sequences counts windows of three consecutive ascending or descending code
// points among letters and digits.
func sequences(pw []rune) int {
	n := 0
	for i := 2; i < len(pw); i++ {
		a, b, c := pw[i-2], pw[i-1], pw[i]
		if !alnum(a) || !alnum(b) || !alnum(c) {
			continue
		}
		if (b == a+1 && c == b+1) || (b == a-1 && c == b-1) {
			n++
		}
	}
	return n
}

func alnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func band(score int) Strength {
	switch {
	case score < 40:
		return StrengthWeak
	case score < 60:
		return StrengthMedium
	case score < 80:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}
