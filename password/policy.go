package password

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength is the minimum number of characters a password must have.
const DefaultMinLength = 8

var (
	// ErrTooShort is returned when a password has fewer than the minimum characters.
	ErrTooShort = errors.New("password too short")
	// ErrMissingLetter is returned when a password contains no letter.
	ErrMissingLetter = errors.New("password must contain a letter")
	// ErrMissingDigit is returned when a password contains no digit.
	ErrMissingDigit = errors.New("password must contain a digit")
)

// CheckStrength enforces the minimum length and requires at least one letter
// and one digit. minLength <= 0 falls back to DefaultMinLength.
func CheckStrength(password string, minLength int) error {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if utf8.RuneCountInString(password) < minLength {
		return ErrTooShort
	}

	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter {
		return ErrMissingLetter
	}
	if !digit {
		return ErrMissingDigit
	}
	return nil
}
