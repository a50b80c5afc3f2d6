package services

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/authgate/backend/internal/models"
)

const (
	DefaultPasswordMinLength = 8
	maxPasswordBytes         = 72
	maxAttributeSimilarity   = 0.7
)

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = loadCommonPasswords(commonPasswordList)

func loadCommonPasswords(list string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(list))
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			set[strings.ToLower(word)] = struct{}{}
		}
	}
	return set
}

// PasswordValidator returns every rule a password breaks. user may be a
// partially filled record for accounts that do not exist yet.
type PasswordValidator interface {
	Validate(password string, user *models.User) []string
}

type PasswordPolicy struct {
	MinLength           int
	RequireUpper        bool
	RequireLower        bool
	RequireDigit        bool
	RequireSymbol       bool
	ForbidCommon        bool
	ForbidNumericOnly   bool
	ForbidSimilarToUser bool
}

// DefaultPasswordPolicy checks length, similarity to the user's own
// attributes, a common-password list and all-digit passwords.
func DefaultPasswordPolicy(minLength int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = DefaultPasswordMinLength
	}
	return &PasswordPolicy{
		MinLength:           minLength,
		ForbidCommon:        true,
		ForbidNumericOnly:   true,
		ForbidSimilarToUser: true,
	}
}

func (p *PasswordPolicy) Validate(password string, user *models.User) []string {
	var problems []string

	if p.ForbidSimilarToUser && user != nil {
		if attr := similarAttribute(password, user); attr != "" {
			problems = append(problems, fmt.Sprintf("The password is too similar to the %s.", attr))
		}
	}
	if len([]rune(password)) < p.MinLength {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.MinLength))
	}
	if len(password) > maxPasswordBytes {
		problems = append(problems, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", maxPasswordBytes))
	}
	if p.ForbidCommon {
		if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
			problems = append(problems, "This password is too common.")
		}
	}
	if p.ForbidNumericOnly && password != "" && isDigits(password) {
		problems = append(problems, "This password is entirely numeric.")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if p.RequireUpper && !hasUpper {
		problems = append(problems, "This password must contain an uppercase letter.")
	}
	if p.RequireLower && !hasLower {
		problems = append(problems, "This password must contain a lowercase letter.")
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, "This password must contain a digit.")
	}
	if p.RequireSymbol && !hasSymbol {
		problems = append(problems, "This password must contain a symbol.")
	}

	return problems
}

var nonWord = regexp.MustCompile(`\W+`)

func similarAttribute(password string, user *models.User) string {
	lowered := strings.ToLower(password)
	attributes := []struct {
		name  string
		value string
	}{
		{"username", user.Username},
		{"first name", user.FirstName},
		{"last name", user.LastName},
		{"email address", user.Email},
	}

	for _, attr := range attributes {
		value := strings.ToLower(attr.value)
		if value == "" {
			continue
		}
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" {
				continue
			}
			if similarityRatio(lowered, part) >= maxAttributeSimilarity {
				return attr.name
			}
		}
	}
	return ""
}

// similarityRatio is the Ratcliff/Obershelp score 2*M/T, where M counts
// characters in recursively matched common substrings.
func similarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	bestLen, bestA, bestB := 0, 0, 0
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			current := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > bestLen {
					bestLen = lengths[j]
					bestA = i - bestLen
					bestB = j - bestLen
				}
			} else {
				lengths[j] = 0
			}
			prev = current
		}
	}
	if bestLen == 0 {
		return 0
	}

	return bestLen +
		matchingRunes(a[:bestA], b[:bestB]) +
		matchingRunes(a[bestA+bestLen:], b[bestB+bestLen:])
}
