package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)
)

var (
	ErrNameRequired    = errors.New("name is required")
	ErrContactRequired = errors.New("email or phoneNumber is required")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidPhone    = errors.New("invalid phone number format")
	ErrWeakPassword    = errors.New("password must be at least 6 characters")
	ErrInvalidAge      = errors.New("age must be between 1 and 150")
)

const MinPasswordLength = 6

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizeContact trims and lowercases email, trims phone, and turns blank
// values into nil.
func NormalizeContact(email, phone *string) (*string, *string) {
	var outEmail, outPhone *string
	if email != nil {
		if v := strings.ToLower(strings.TrimSpace(*email)); v != "" {
			outEmail = &v
		}
	}
	if phone != nil {
		if v := strings.TrimSpace(*phone); v != "" {
			outPhone = &v
		}
	}
	return outEmail, outPhone
}

// ValidateContact requires at least one contact and checks the formats of
// whichever are present. Inputs are expected to be normalized.
func ValidateContact(email, phone *string) error {
	if email == nil && phone == nil {
		return ErrContactRequired
	}
	if email != nil && !ValidEmail(*email) {
		return ErrInvalidEmail
	}
	if phone != nil && !ValidPhone(*phone) {
		return ErrInvalidPhone
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func ValidateAge(age *int) error {
	if age != nil && (*age < 1 || *age > 150) {
		return ErrInvalidAge
	}
	return nil
}
