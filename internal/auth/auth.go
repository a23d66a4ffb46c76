// Package auth handles sign-in against the locally stored user list.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/store"
)

// ErrInvalidCredentials is returned for any failed login. The reason is
// deliberately not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Login verifies a name and password against the stored user list and
// records the session on success.
//
// The default administrator credentials always work, even when a remote user
// sync replaced the user list with one that dropped the admin account. Being
// locked out of a bookkeeping client by our own sync is not an acceptable
// failure mode.
func Login(st store.Store, name, password string) (domain.User, error) {
	name = strings.TrimSpace(name)

	for _, u := range st.Users() {
		if u.Name != name {
			continue
		}
		if !VerifyPassword(u.Password, password) {
			return domain.User{}, ErrInvalidCredentials
		}
		if err := st.SetCurrentUser(u); err != nil {
			return domain.User{}, fmt.Errorf("Login: recording session: %w", err)
		}
		return u, nil
	}

	admin := domain.DefaultAdmin()
	if name == admin.ID && password == admin.Password {
		if err := st.SaveUser(admin); err != nil {
			return domain.User{}, fmt.Errorf("Login: restoring admin: %w", err)
		}
		if err := st.SetCurrentUser(admin); err != nil {
			return domain.User{}, fmt.Errorf("Login: recording session: %w", err)
		}
		return admin, nil
	}

	return domain.User{}, ErrInvalidCredentials
}

// Logout clears the recorded session.
func Logout(st store.Store) error {
	return st.ClearCurrentUser()
}

// VerifyPassword checks a supplied password against the stored one, which is
// either a bcrypt hash or, for accounts provisioned through the spreadsheet,
// a plain value compared in constant time.
func VerifyPassword(stored, supplied string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// HashPassword bcrypt-hashes a password for local account creation.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPassword: %w", err)
	}
	return string(hashed), nil
}
