package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

const sessionKey = "rum_session"

// DefaultTimeout is the sliding session expiry: a session ends after this
// much inactivity.
const DefaultTimeout = 30 * time.Minute

// Manager owns the session identifier and hands out page identifiers.
// The session ID persists across page views within the timeout window;
// the page ID is regenerated for every page view and correlates the main,
// interaction and custom-data beacons of one view.
type Manager struct {
	store   Store
	timeout time.Duration
	id      string
	resumed bool
	entropy *mathrand.Rand
}

func NewManager(store Store, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Manager{
		store:   store,
		timeout: timeout,
		entropy: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	m.id, m.resumed = m.load()
	return m
}

// load reads the persisted session or mints a new one, and slides the
// expiry either way.
func (m *Manager) load() (string, bool) {
	if id, ok := m.store.Get(sessionKey); ok && id != "" {
		_ = m.store.Set(sessionKey, id, m.timeout)
		return id, true
	}
	id := newSessionID()
	_ = m.store.Set(sessionKey, id, m.timeout)
	return id, false
}

// SessionID returns the current session identifier.
func (m *Manager) SessionID() string {
	return m.id
}

// Resumed reports whether the session was read from the store rather than
// freshly minted.
func (m *Manager) Resumed() bool {
	return m.resumed
}

// Touch slides the session expiry. Called on every page view so an active
// session never rotates mid-visit.
func (m *Manager) Touch() {
	_ = m.store.Set(sessionKey, m.id, m.timeout)
}

// NewPageID mints a fresh page-view identifier.
func (m *Manager) NewPageID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

// newSessionID builds a decimal session identifier: epoch millis followed
// by random digits. The trailing digits double as the sampling bucket.
func newSessionID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("%d%06d", time.Now().UnixMilli(), n.Int64())
}

// Sampled makes the deterministic sampling decision for a session: the
// bucket is the ID's trailing two digits, compared against the configured
// rate in percent. An ID ending in "20" is sampled at rate 50; one ending
// in "70" is not.
func Sampled(sessionID string, rate int) bool {
	if rate >= 100 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return bucket(sessionID) < rate
}

func bucket(sessionID string) int {
	digits := ""
	for i := len(sessionID) - 1; i >= 0 && len(digits) < 2; i-- {
		c := sessionID[i]
		if c < '0' || c > '9' {
			break
		}
		digits = string(c) + digits
	}
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n % 100
}
