package abode

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Credentials are the account email and password used for sign-in.
type Credentials struct {
	Email    string
	Password string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Email != "" && c.Password != ""
}

// Tokens is a point-in-time copy of the session's auth fields.
type Tokens struct {
	Session    string
	APIKey     string
	OAuthToken string
}

// Session is the single owned copy of credentials and auth state.
// It is shared by reference between the Client, the Authenticator and the Socket.
//
// The three auth fields are cleared together by Clear and populated one at a
// time as each sign-in step succeeds.
//
// Thread Safety: All methods are safe for concurrent use.
type Session struct {
	mu          sync.RWMutex
	credentials Credentials
	tokens      Tokens
	instanceID  string
}

// NewSession creates a session with a fresh random device instance id.
func NewSession() *Session {
	return NewSessionWithInstanceID(uuid.NewString())
}

// NewSessionWithInstanceID creates a session with a fixed device instance id.
func NewSessionWithInstanceID(id string) *Session {
	return &Session{instanceID: id}
}

// SetCredentials stores the account credentials verbatim.
func (s *Session) SetCredentials(email, password string) {
	s.mu.Lock()
	s.credentials = Credentials{Email: email, Password: password}
	s.mu.Unlock()
}

// Credentials returns the stored credentials.
func (s *Session) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentials
}

// InstanceID returns the process-lifetime device instance id.
func (s *Session) InstanceID() string {
	return s.instanceID
}

// Clear resets session, API key and OAuth token together.
func (s *Session) Clear() {
	s.mu.Lock()
	s.tokens = Tokens{}
	s.mu.Unlock()
}

// SetSession stores the session cookie value.
func (s *Session) SetSession(v string) {
	s.mu.Lock()
	s.tokens.Session = v
	s.mu.Unlock()
}

// SetAPIKey stores the API key.
func (s *Session) SetAPIKey(v string) {
	s.mu.Lock()
	s.tokens.APIKey = v
	s.mu.Unlock()
}

// SetOAuthToken stores the OAuth bearer token.
func (s *Session) SetOAuthToken(v string) {
	s.mu.Lock()
	s.tokens.OAuthToken = v
	s.mu.Unlock()
}

// Tokens returns a snapshot of the auth fields.
func (s *Session) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// HasSession reports whether a session value is present.
func (s *Session) HasSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Session != ""
}

// Cookie formats the Cookie header value.
// Callers must check HasSession first; with no session the value is malformed.
func (s *Session) Cookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cookieValue(s.tokens.Session, s.instanceID)
}

func cookieValue(session, instanceID string) string {
	return fmt.Sprintf("SESSION=%s;uuid=%s", session, instanceID)
}
