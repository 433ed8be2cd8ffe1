package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the username is unknown or the
	// password does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidRegistration is matched by every *ValidationError.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// ValidationError reports the first registration field that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid registration: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRegistration }

// Registration holds the raw registration form. Numeric and date fields are
// validated and parsed by Validate.
type Registration struct {
	Username               string `json:"username"`
	Password               string `json:"password"`
	AccessibilityChallenge string `json:"accessibilityChallenge"`
	Height                 string `json:"height"`
	Weight                 string `json:"weight"`
	EyeColor               string `json:"eyeColor"`
	IPD                    string `json:"ipd"`
	Astigmatism            string `json:"astigmatism"`
	Disabilities           string `json:"disabilities"`
	Gender                 string `json:"gender"`
	Birthdate              string `json:"birthdate"`
}

// User is a stored operator account, without the password hash.
type User struct {
	ID                     int64   `json:"id"`
	Username               string  `json:"username"`
	AccessibilityChallenge string  `json:"accessibilityChallenge"`
	Height                 float64 `json:"height"`
	Weight                 float64 `json:"weight"`
	EyeColor               string  `json:"eyeColor"`
	IPD                    float64 `json:"ipd"`
	Astigmatism            string  `json:"astigmatism"`
	Disabilities           string  `json:"disabilities"`
	Gender                 string  `json:"gender"`
	Birthdate              string  `json:"birthdate"`
}

// Validate checks the form rules and returns the parsed account.
func (r Registration) Validate() (User, error) {
	if strings.TrimSpace(r.Username) == "" || r.Password == "" {
		return User{}, &ValidationError{Field: "username/password", Reason: "are required"}
	}
	if _, err := time.Parse(time.DateOnly, r.Birthdate); err != nil {
		return User{}, &ValidationError{Field: "birthdate", Reason: "must be YYYY-MM-DD"}
	}

	var nums [3]float64
	for i, f := range []struct{ name, value string }{
		{"height", r.Height},
		{"weight", r.Weight},
		{"ipd", r.IPD},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.value), 64)
		if err != nil {
			return User{}, &ValidationError{Field: f.name, Reason: "must be numeric"}
		}
		nums[i] = v
	}

	astig := strings.ToLower(strings.TrimSpace(r.Astigmatism))
	if astig != "yes" && astig != "no" {
		return User{}, &ValidationError{Field: "astigmatism", Reason: "must be yes or no"}
	}

	return User{
		Username:               strings.TrimSpace(r.Username),
		AccessibilityChallenge: r.AccessibilityChallenge,
		Height:                 nums[0],
		Weight:                 nums[1],
		EyeColor:               r.EyeColor,
		IPD:                    nums[2],
		Astigmatism:            astig,
		Disabilities:           r.Disabilities,
		Gender:                 r.Gender,
		Birthdate:              r.Birthdate,
	}, nil
}

// Register validates and stores a new account. It returns false without an
// error when the username is already taken.
func (s *Store) Register(ctx context.Context, r Registration) (bool, error) {
	u, err := r.Validate()
	if err != nil {
		return false, err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, u.Username).Scan(&exists); err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, accessibility_challenge, height, weight, eye_color, ipd, astigmatism, disabilities, gender, birthdate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, string(hash), u.AccessibilityChallenge, u.Height, u.Weight,
		u.EyeColor, u.IPD, u.Astigmatism, u.Disabilities, u.Gender, u.Birthdate,
	)
	if err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Authenticate returns the account matching username and password.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, accessibility_challenge, height, weight, eye_color, ipd, astigmatism, disabilities, gender, birthdate
		 FROM users WHERE username = ?`, strings.TrimSpace(username),
	).Scan(&u.ID, &u.Username, &hash, &u.AccessibilityChallenge, &u.Height, &u.Weight,
		&u.EyeColor, &u.IPD, &u.Astigmatism, &u.Disabilities, &u.Gender, &u.Birthdate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "Duplicate entry")
}
