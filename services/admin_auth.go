package services

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAdminNotConfigured = errors.New("admin login is not configured")
)

// AdminAuth checks the dashboard operator's credentials and issues session
// tokens. The password is only kept as a bcrypt hash.
type AdminAuth struct {
	email        string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAdminAuth(email, password string, secret []byte, ttl time.Duration) (*AdminAuth, error) {
	a := &AdminAuth{
		email:  strings.ToLower(strings.TrimSpace(email)),
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	if a.email == "" || password == "" {
		return a, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a.passwordHash = hash
	return a, nil
}

func (a *AdminAuth) Login(email, password string) (string, time.Time, error) {
	if a.passwordHash == nil {
		return "", time.Time{}, ErrAdminNotConfigured
	}
	if strings.ToLower(strings.TrimSpace(email)) != a.email {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  a.email,
		"role": RoleAdmin,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}
