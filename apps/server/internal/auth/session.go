package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 12 * time.Hour
	tokenBytes        = 32
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Manager keeps admin accounts and their sessions in memory. Accounts come
// from configuration as bcrypt hashes; nothing is self-registered.
type Manager struct {
	mu sync.Mutex

	sessionTTL time.Duration
	now        func() time.Time
	sessions   map[string]sessionRecord // token -> account
	accounts   map[string][]byte        // normalized username -> bcrypt hash
}

type sessionRecord struct {
	Username  string
	ExpiresAt time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Manager{
		sessionTTL: ttl,
		now:        time.Now,
		sessions:   make(map[string]sessionRecord),
		accounts:   make(map[string][]byte),
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in RPG_ADMIN_ACCOUNTS.
func HashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AddAccount registers an admin with an existing bcrypt hash.
func (m *Manager) AddAccount(username, hash string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("account %s: %w", username, err)
	}
	key := normalizeUsername(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[key]; exists {
		return ErrUsernameTaken
	}
	m.accounts[key] = []byte(hash)
	return nil
}

// LoadAccounts parses "user:hash,user2:hash2". bcrypt hashes contain no
// commas, and the first colon separates the name.
func (m *Manager) LoadAccounts(spec string) (int, error) {
	n := 0
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		user, hash, ok := strings.Cut(part, ":")
		if !ok {
			return n, fmt.Errorf("malformed admin account %q", part)
		}
		if err := m.AddAccount(user, strings.TrimSpace(hash)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (m *Manager) issueSessionLocked(username string, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{Username: username, ExpiresAt: now.Add(m.sessionTTL)}
	return token
}

// Login validates credentials and returns a fresh session token.
func (m *Manager) Login(username, password string) (string, error) {
	key := normalizeUsername(username)
	if key == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	m.mu.Lock()
	hash, exists := m.accounts[key]
	m.mu.Unlock()
	if !exists {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueSessionLocked(key, m.now()), nil
}

// ResolveSession validates and refreshes a session token.
func (m *Manager) ResolveSession(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	rec, exists := m.sessions[token]
	if !exists {
		return "", false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return "", false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec
	return rec.Username, true
}

// Logout invalidates a session token.
func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) Close() error { return nil }

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
