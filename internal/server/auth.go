// auth.go - Single-user login check against a bcrypt digest.
//
// The user set is built once at start-up and injected; there is no session
// or token, a successful login is only an acknowledgement.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// bcryptCost matches the cost used when the admin password is hashed at boot.
const bcryptCost = 10

// User is a username with its bcrypt digest.
type User struct {
	Username     string
	PasswordHash []byte
}

// NewUser hashes password for username.
func NewUser(username, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password for %s: %w", username, err)
	}
	return User{Username: username, PasswordHash: hash}, nil
}

// UserSet is an immutable lookup of users by exact, case-sensitive name.
type UserSet struct {
	users map[string]User
}

func NewUserSet(users ...User) UserSet {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.Username] = u
	}
	return UserSet{users: m}
}

// AdminUsers builds the single-entry set from configuration. A precomputed
// hash wins over a plaintext password. An empty username gives an empty set.
func AdminUsers(username, password, passwordHash string) (UserSet, error) {
	if username == "" {
		return NewUserSet(), nil
	}
	if passwordHash != "" {
		return NewUserSet(User{Username: username, PasswordHash: []byte(passwordHash)}), nil
	}
	u, err := NewUser(username, password)
	if err != nil {
		return UserSet{}, err
	}
	return NewUserSet(u), nil
}

func (s UserSet) lookup(username string) (User, bool) {
	u, ok := s.users[username]
	return u, ok
}

// Authenticator checks credentials against a UserSet.
type Authenticator struct {
	users UserSet
}

func NewAuthenticator(users UserSet) *Authenticator {
	return &Authenticator{users: users}
}

// Login returns nil on a match, ErrUserNotFound for an unknown username and
// ErrAuthenticationFailed for a wrong password or an unusable digest.
func (a *Authenticator) Login(username, password string) error {
	u, ok := a.users.lookup(username)
	if !ok {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return ErrAuthenticationFailed
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		err := s.cfg.Auth.Login(body.Username, body.Password)
		switch {
		case err == nil:
			s.metrics.RecordLoginAttempt("success")
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		case errors.Is(err, ErrUserNotFound):
			s.metrics.RecordLoginAttempt("not_found")
			writeError(w, http.StatusNotFound, "User not found")
		default:
			s.metrics.RecordLoginAttempt("failed")
			Info("login failed", map[string]interface{}{
				"rid":      RequestIDFromContext(r.Context()),
				"username": body.Username,
			})
			writeError(w, http.StatusUnauthorized, "Authentication failed")
		}
	}
}
