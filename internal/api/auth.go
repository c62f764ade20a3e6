package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// Session cookie name
	SessionCookieName = "symbol_balls_operator"

	// Session duration (24 hours)
	SessionDuration = 24 * time.Hour

	// Cookie settings
	CookieSecure   = false // Set to true in production with HTTPS
	CookieHTTPOnly = true
	CookieSameSite = http.SameSiteLaxMode
)

var (
	ErrBadToken        = errors.New("invalid operator token")
	errInvalidCookie   = errors.New("invalid cookie")
	errSessionNotFound = errors.New("session not found")
)

// OperatorSession is an authenticated operator login.
type OperatorSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionManager guards game-control routes behind a shared operator token.
// Operators either send the token as a bearer header or exchange it once for
// a signed session cookie. A manager with an empty token lets everything
// through.
type SessionManager struct {
	mu sync.RWMutex

	// Active sessions (sessionID -> session)
	sessions map[string]*OperatorSession

	// Secret key for signing session cookies
	secretKey []byte

	token string

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a session manager for token.
func NewSessionManager(token string) *SessionManager {
	// Generate random secret key for this instance
	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		log.Printf("⚠️ Failed to generate secret key, deriving one from the token")
		sum := sha256.Sum256([]byte("operator:" + token))
		secretKey = sum[:]
	}

	sm := &SessionManager{
		sessions:  make(map[string]*OperatorSession),
		secretKey: secretKey,
		token:     token,
		stopChan:  make(chan struct{}),
	}

	if sm.Enabled() {
		// Start cleanup goroutine
		go sm.cleanupLoop()
	}

	return sm
}

// Enabled reports whether a token is required.
func (sm *SessionManager) Enabled() bool {
	return sm != nil && sm.token != ""
}

// Stop ends the cleanup goroutine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// CreateSession starts a session for a caller presenting token.
func (sm *SessionManager) CreateSession(token string) (*OperatorSession, error) {
	if !sm.checkToken(token) {
		return nil, ErrBadToken
	}

	now := time.Now()
	session := &OperatorSession{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(SessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	log.Printf("🔐 Operator session created: %s", session.ID[:8])
	return session, nil
}

// GetSession retrieves a live session by ID
func (sm *SessionManager) GetSession(sessionID string) (*OperatorSession, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists || time.Now().After(session.ExpiresAt) {
		return nil, errSessionNotFound
	}
	return session, nil
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionID)
}

// Authorized checks the bearer token first and the session cookie second.
func (sm *SessionManager) Authorized(r *http.Request) bool {
	if !sm.Enabled() {
		return true
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		return ok && sm.checkToken(token)
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	sessionID, err := sm.decodeCookie(cookie.Value)
	if err != nil {
		return false
	}
	_, err = sm.GetSession(sessionID)
	return err == nil
}

func (sm *SessionManager) checkToken(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(sm.token)) == 1
}

// SetSessionCookie sets the session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sm.encodeCookie(sessionID),
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: CookieHTTPOnly,
		Secure:   CookieSecure,
		SameSite: CookieSameSite,
	})
}

// ClearSessionCookie removes the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: CookieHTTPOnly,
		Secure:   CookieSecure,
		SameSite: CookieSameSite,
	})
}

// encodeCookie creates a signed cookie value: base64(sessionID.hmac)
func (sm *SessionManager) encodeCookie(sessionID string) string {
	mac := hmac.New(sha256.New, sm.secretKey)
	mac.Write([]byte(sessionID))
	signature := hex.EncodeToString(mac.Sum(nil))

	return base64.URLEncoding.EncodeToString([]byte(sessionID + "." + signature))
}

// decodeCookie verifies and extracts the session ID from cookie
func (sm *SessionManager) decodeCookie(cookieValue string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(cookieValue)
	if err != nil {
		return "", errors.Wrap(errInvalidCookie, "encoding")
	}

	sessionID, providedSig, ok := strings.Cut(string(decoded), ".")
	if !ok {
		return "", errors.Wrap(errInvalidCookie, "format")
	}

	mac := hmac.New(sha256.New, sm.secretKey)
	mac.Write([]byte(sessionID))
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(providedSig), []byte(expectedSig)) {
		return "", errors.Wrap(errInvalidCookie, "signature")
	}

	return sessionID, nil
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopChan:
			return
		case now := <-ticker.C:
			sm.cleanup(now)
		}
	}
}

// cleanup removes expired sessions
func (sm *SessionManager) cleanup(now time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
}

// OperatorMiddleware rejects unauthenticated requests with 401.
func (sm *SessionManager) OperatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sm.Authorized(r) {
			RecordConnectionRejected("unauthorized")
			writeError(w, "operator authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthStatus returns the current authentication status
type AuthStatus struct {
	Required      bool `json:"required"`
	Authenticated bool `json:"authenticated"`
}

// HandleAuthStatus returns current auth status
func (sm *SessionManager) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AuthStatus{
		Required:      sm.Enabled(),
		Authenticated: sm.Authorized(r),
	})
}

// HandleLogin exchanges {"token"} for a session cookie.
func (sm *SessionManager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !sm.Enabled() {
		writeJSON(w, AuthStatus{Required: false, Authenticated: true})
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	session, err := sm.CreateSession(req.Token)
	if err != nil {
		log.Printf("⚠️ Operator login refused from %s", GetClientIP(r))
		RecordConnectionRejected("unauthorized")
		writeError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	sm.SetSessionCookie(w, session.ID)
	writeJSON(w, AuthStatus{Required: true, Authenticated: true})
}

// HandleLogout clears the session
func (sm *SessionManager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sessionID, err := sm.decodeCookie(cookie.Value); err == nil {
			sm.DeleteSession(sessionID)
		}
	}

	sm.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
