package users

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt only accepts inputs up to MaxPasswordBytes.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "sunshine": {},
	"princess": {}, "football": {}, "baseball": {}, "welcome1": {}, "admin123": {},
	"letmein1": {}, "trustno1": {}, "passw0rd": {}, "superman": {}, "11111111": {},
	"00000000": {}, "abc12345": {}, "qwerty12": {}, "dragon12": {}, "monkey12": {},
}

// ValidatePassword applies the password policy and returns the messages of
// every failed rule.
func ValidatePassword(password string, u *User) []string {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > MaxPasswordBytes {
		problems = append(problems, "This password is too long. It must not exceed 72 bytes.")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "This password is too common.")
	}
	if isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	if u != nil && tooSimilar(password, u) {
		problems = append(problems, "The password is too similar to the account details.")
	}
	return problems
}

// HashPassword hashes a raw password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func (u User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func tooSimilar(password string, u *User) bool {
	lower := strings.ToLower(password)
	local, _, _ := strings.Cut(u.Email, "@")
	for _, attr := range []string{u.Username, local, u.FirstName, u.LastName} {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if len(attr) < 3 {
			continue
		}
		if strings.Contains(lower, attr) || strings.Contains(attr, lower) {
			return true
		}
	}
	return false
}
