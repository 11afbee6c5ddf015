package usecase

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nonDigitRe    = regexp.MustCompile(`\D`)
	phoneCharsRe  = regexp.MustCompile(`^\+?[\d\s\-().]+$`)
	countryCodeRe = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ValidateCreateLeadInput(input CreateLeadInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.ID) == "" {
		errors = append(errors, ValidationError{"id", "is required"})
	} else if _, err := uuid.Parse(input.ID); err != nil {
		errors = append(errors, ValidationError{"id", "must be a UUID"})
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if len(name) < 2 {
		errors = append(errors, ValidationError{"name", "must have at least 2 characters"})
	} else if len(name) > 200 {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if !isValidEmail(email) {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	if strings.TrimSpace(input.Phone) == "" {
		errors = append(errors, ValidationError{"phone", "is required"})
	} else if !isValidPhoneNumber(input.Phone) {
		errors = append(errors, ValidationError{"phone", "must be a valid phone number"})
	}

	if input.CountryCode != "" && !countryCodeRe.MatchString(input.CountryCode) {
		errors = append(errors, ValidationError{"country_code", "must be an ISO 3166 alpha-2 code"})
	}

	return errors
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <a@b>"; a form field must be the bare address
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

func isValidPhoneNumber(phone string) bool {
	phone = strings.TrimSpace(phone)
	if !phoneCharsRe.MatchString(phone) {
		return false
	}
	digits := nonDigitRe.ReplaceAllString(phone, "")
	return len(digits) >= 7 && len(digits) <= 15
}
