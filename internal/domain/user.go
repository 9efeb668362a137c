package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// User is an account. Favorites and follow edges live in their own
// collections and are reached through the user store.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user may moderate content.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserProfile is a user with its membership counters.
type UserProfile struct {
	User
	FavoritesCount int
	FollowersCount int
	FollowingCount int
	ReviewsCount   int
	WatchlistCount int
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return Errorf(ErrInvalidInput, "username must be 3-20 characters of letters, numbers and underscores")
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return Errorf(ErrInvalidInput, "please provide a valid email")
	}
	return nil
}

// ValidatePassword requires six characters including an upper-case
// letter, a lower-case letter and a digit.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return Errorf(ErrInvalidInput, "password must be at least 6 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return Errorf(ErrInvalidInput, "password must contain an uppercase letter, a lowercase letter and a number")
	}
	return nil
}
