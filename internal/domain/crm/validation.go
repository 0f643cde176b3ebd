package crm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/enterprisecrm/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^[\d\s\-\(\)\+\.]+$`)
	codeRegex  = regexp.MustCompile(`^[A-Z0-9_\-]+$`)
)

// NormalizeName trims a person name and title-cases it, keeping the
// existing case of later letters so "McDonald" survives.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.Und, cases.NoLower).String(name)
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRequired(code, field, value string, maxLen int) error {
	if strings.TrimSpace(value) == "" {
		return shared.NewDomainError(code, field+" cannot be empty")
	}
	return validateMaxLen(code, field, value, maxLen)
}

func validateMaxLen(code, field, value string, maxLen int) error {
	if utf8.RuneCountInString(value) > maxLen {
		return shared.NewDomainError(code, field+" cannot exceed "+strconv.Itoa(maxLen)+" characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if len(phone) > 50 {
		return shared.NewDomainError("INVALID_PHONE", "Phone number cannot exceed 50 characters")
	}
	if !phoneRegex.MatchString(phone) {
		return shared.NewDomainError("INVALID_PHONE", "Invalid phone number format")
	}
	return nil
}
