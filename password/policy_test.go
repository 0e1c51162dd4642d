package password

import (
	"errors"
	"testing"
)

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{name: "letters and digits", password: "abc12345", want: nil},
		{name: "letters only", password: "alllettersnodigits", want: ErrMissingDigit},
		{name: "digits only", password: "1234567890", want: ErrMissingLetter},
		{name: "too short", password: "ab12", want: ErrTooShort},
		{name: "unicode letters count", password: "пароль12", want: nil},
		{name: "empty", password: "", want: ErrTooShort},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckStrength(tc.password, 8)
			if !errors.Is(err, tc.want) {
				t.Fatalf("CheckStrength(%q) = %v, want %v", tc.password, err, tc.want)
			}
		})
	}
}

func TestCheckStrengthDefaultMinimum(t *testing.T) {
	if err := CheckStrength("abc1234", 0); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected default minimum of %d to apply, got %v", DefaultMinLength, err)
	}
}
