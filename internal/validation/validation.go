package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// UsernamePattern определяет допустимый формат username
// Латинские буквы, цифры, нижнее подчеркивание, точка и дефис
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,36}$`)

// OTPPattern is the format of a TOTP one-time code
var OTPPattern = regexp.MustCompile(`^\d{6}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 36
	// MinPasswordLen минимальная длина пароля при регистрации и смене пароля
	MinPasswordLen = 8
	// MaxTeamNameLen максимальная длина имени команды
	MaxTeamNameLen = 36
)

// ErrPasswordMismatch is returned when a password and its confirmation differ
var ErrPasswordMismatch = errors.New("passwords must match")

// ValidateUsername проверяет, что username соответствует требованиям
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, '_', '.' and '-'")
	}

	return nil
}

// ValidatePassword проверяет требования к новому паролю
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	return nil
}

// ValidatePasswordConfirmation checks that a new password was typed twice identically
func ValidatePasswordConfirmation(password, confirmation string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirmation {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidateEmail проверяет адрес электронной почты
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}

// ValidateOTP checks a 6-digit one-time code
func ValidateOTP(code string) error {
	if !OTPPattern.MatchString(code) {
		return fmt.Errorf("one-time code must be exactly 6 digits")
	}
	return nil
}

// ValidateTeamName проверяет имя команды
func ValidateTeamName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("team name cannot be empty")
	}
	if len(name) > MaxTeamNameLen {
		return fmt.Errorf("team name must not exceed %d characters", MaxTeamNameLen)
	}
	return nil
}

// ValidateRequired rejects empty values of required form fields
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s required", field)
	}
	return nil
}
