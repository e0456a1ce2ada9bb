package abode

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// API paths used during sign-in and renewal.
const (
	loginPath  = "/api/auth2/login"
	claimsPath = "/api/auth2/claims"
)

// DefaultRenewInterval is how often the session is renewed.
const DefaultRenewInterval = 25 * time.Minute

// Renewal runs this long before the OAuth token expires when that comes
// sooner than the next interval, but never sooner than minRenewWait.
const (
	tokenExpiryMargin = time.Minute
	minRenewWait      = 5 * time.Second
)

// AuthState is the authenticator's lifecycle state.
type AuthState int32

const (
	StateUnauthenticated AuthState = iota
	StateAuthenticating
	StateAuthenticated
	StateRenewalFailed
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRenewalFailed:
		return "renewal_failed"
	default:
		return fmt.Sprintf("AuthState(%d)", int32(s))
	}
}

// Authenticator signs in to Abode and keeps the session alive.
//
// Concurrent Authenticate calls share one in-flight sign-in, so a renewal
// fallback and a startup sign-in never interleave their writes to the
// Session. Renew calls that overlap are collapsed: the later caller returns
// immediately.
type Authenticator struct {
	client   *Client
	session  *Session
	logger   Logger
	interval time.Duration

	group   singleflight.Group
	renewMu sync.Mutex
	state   atomic.Int32

	lastRenew atomic.Int64
	tokenExp  atomic.Int64
}

// NewAuthenticator creates an authenticator that drives client.
// It registers itself as the client's renewer.
func NewAuthenticator(client *Client, interval time.Duration) *Authenticator {
	if interval <= 0 {
		interval = DefaultRenewInterval
	}
	a := &Authenticator{
		client:   client,
		session:  client.Session(),
		logger:   noopLogger{},
		interval: interval,
	}
	client.SetRenewer(a)
	return a
}

// SetLogger sets the logger.
func (a *Authenticator) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// State returns the current lifecycle state.
func (a *Authenticator) State() AuthState {
	return AuthState(a.state.Load())
}

// LastRenewal returns when the last successful renewal or sign-in finished.
func (a *Authenticator) LastRenewal() time.Time {
	ns := a.lastRenew.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// TokenExpiresAt returns the exp claim of the current OAuth token, or the
// zero time when the token carries none.
func (a *Authenticator) TokenExpiresAt() time.Time {
	ns := a.tokenExp.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (a *Authenticator) setState(s AuthState) {
	a.state.Store(int32(s))
}

// Authenticate performs a full sign-in: clear session state, log in, then
// fetch an OAuth token. Any error means the session is invalid.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	_, err, _ := a.group.Do("authenticate", func() (any, error) {
		return nil, a.authenticate(ctx)
	})
	return err
}

func (a *Authenticator) authenticate(ctx context.Context) error {
	creds := a.session.Credentials()
	if !creds.Valid() {
		a.setState(StateUnauthenticated)
		return fmt.Errorf("%w: missing credentials", ErrConfiguration)
	}

	a.setState(StateAuthenticating)
	a.session.Clear()
	a.tokenExp.Store(0)

	a.logger.Info("signing into abode account")

	if err := a.login(ctx, creds); err != nil {
		a.setState(StateUnauthenticated)
		a.logger.Error("abode sign-in failed", "error", err)
		return err
	}

	token, err := a.FetchOAuthToken(ctx)
	if err != nil {
		a.setState(StateUnauthenticated)
		a.logger.Error("abode sign-in failed", "error", err)
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	a.setOAuthToken(token)

	a.lastRenew.Store(time.Now().UnixNano())
	a.setState(StateAuthenticated)
	return nil
}

// login posts the credentials and stores the API key and session cookie.
func (a *Authenticator) login(ctx context.Context, creds Credentials) error {
	body := map[string]string{
		"id":       creds.Email,
		"password": creds.Password,
		"uuid":     a.session.InstanceID(),
	}

	resp, err := a.client.Post(ctx, loginPath, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: received status %d", ErrAuthentication, resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := resp.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if payload.Token == "" {
		return fmt.Errorf("%w: response did not contain API key", ErrAuthentication)
	}

	cookies := parseCookies(resp.Header.Values("Set-Cookie"))
	session := cookies[sessionCookieName]
	if session == "" {
		return fmt.Errorf("%w: response did not contain session", ErrAuthentication)
	}

	a.session.SetSession(session)
	a.session.SetAPIKey(payload.Token)
	return nil
}

// FetchOAuthToken reads the bearer token from the claims endpoint.
func (a *Authenticator) FetchOAuthToken(ctx context.Context) (string, error) {
	resp, err := a.client.Get(ctx, claimsPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToken, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: received status %d", ErrToken, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %w", ErrToken, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: response did not contain OAuth token", ErrToken)
	}
	return payload.AccessToken, nil
}

// FetchSessionID reads the current session id from the session-check endpoint.
func (a *Authenticator) FetchSessionID(ctx context.Context) (string, error) {
	resp, err := a.client.Get(ctx, sessionPath)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: session check returned status %d", ErrFetch, resp.StatusCode)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	return payload.ID, nil
}

// Renew refreshes the session id and OAuth token, falling back to a full
// sign-in on any failure. It never returns an error; failures are logged and
// the next tick retries.
func (a *Authenticator) Renew(ctx context.Context) {
	// A bad-gateway response seen during renewal would otherwise recurse.
	if !a.renewMu.TryLock() {
		return
	}
	defer a.renewMu.Unlock()

	if err := a.refresh(ctx); err != nil {
		a.setState(StateRenewalFailed)
		a.logger.Debug("No session, re-signing in", "error", err)
		if err := a.Authenticate(ctx); err != nil {
			a.logger.Debug("failed to renew session", "error", err)
		}
		return
	}

	a.lastRenew.Store(time.Now().UnixNano())
	a.setState(StateAuthenticated)
}

func (a *Authenticator) refresh(ctx context.Context) error {
	a.logger.Debug("getting abode session")

	id, err := a.FetchSessionID(ctx)
	if err != nil {
		return err
	}
	if id != "" {
		a.session.SetSession(id)
	}

	token, err := a.FetchOAuthToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		a.setOAuthToken(token)
	}
	return nil
}

// Run renews the session every interval until ctx is cancelled. A token
// that expires before the next interval is renewed early.
func (a *Authenticator) Run(ctx context.Context) {
	timer := time.NewTimer(a.nextRenewal())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			a.Renew(ctx)
			timer.Reset(a.nextRenewal())
		}
	}
}

// nextRenewal is the wait before the next scheduled renewal.
func (a *Authenticator) nextRenewal() time.Duration {
	wait := a.interval
	exp := a.TokenExpiresAt()
	if exp.IsZero() {
		return wait
	}
	if early := time.Until(exp) - tokenExpiryMargin; early < wait {
		wait = max(early, minRenewWait)
	}
	return wait
}

func (a *Authenticator) setOAuthToken(token string) {
	a.session.SetOAuthToken(token)

	exp, ok := TokenExpiry(token)
	if !ok {
		a.tokenExp.Store(0)
		return
	}
	a.tokenExp.Store(exp.UnixNano())
	a.logger.Debug("abode oauth token issued", "expires_at", exp.Format(time.RFC3339))
}
