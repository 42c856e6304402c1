package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the per-request view of a client's session record. A session
// is split into named namespaces, each expiring on its own.
// Session is not safe for concurrent use; the host serializes access per request.
type Session struct {
	id         string
	previousID string
	isNew      bool
	dirty      bool
	namespaces map[string]*Namespace
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates an empty session with a fresh ID.
func New(defaultTTL time.Duration, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:         uuid.NewString(),
		isNew:      true,
		namespaces: make(map[string]*Namespace),
		defaultTTL: defaultTTL,
		now:        now,
	}
}

// ID returns the current session ID.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	return s.dirty
}

// Namespace returns the named namespace, creating an empty one if needed.
func (s *Session) Namespace(name string) *Namespace {
	if ns, ok := s.namespaces[name]; ok {
		return ns
	}
	ns := &Namespace{
		name:    name,
		session: s,
		values:  make(map[string]any),
		ttl:     s.defaultTTL,
	}
	s.namespaces[name] = ns
	return ns
}

// HasNamespace reports whether a non-empty namespace exists.
func (s *Session) HasNamespace(name string) bool {
	ns, ok := s.namespaces[name]
	return ok && len(ns.values) > 0
}

// RenewID assigns a new session ID; the old record is removed on commit.
func (s *Session) RenewID() {
	if s.previousID == "" && !s.isNew {
		s.previousID = s.id
	}
	s.id = uuid.NewString()
	s.dirty = true
}

// Empty reports whether no namespace holds any value.
func (s *Session) Empty() bool {
	for _, ns := range s.namespaces {
		if len(ns.values) > 0 {
			return false
		}
	}
	return true
}

// ExpiresAt returns the latest expiry across non-empty namespaces.
func (s *Session) ExpiresAt() time.Time {
	var latest time.Time
	for _, ns := range s.namespaces {
		if len(ns.values) > 0 && ns.expiresAt.After(latest) {
			latest = ns.expiresAt
		}
	}
	return latest
}

type record struct {
	Namespaces map[string]namespaceRecord `json:"namespaces"`
}

type namespaceRecord struct {
	Values    map[string]any `json:"values"`
	ExpiresAt time.Time      `json:"expiresAt"`
	TTL       time.Duration  `json:"ttl"`
}

// Encode serializes the non-empty namespaces.
func (s *Session) Encode() ([]byte, error) {
	rec := record{Namespaces: make(map[string]namespaceRecord, len(s.namespaces))}
	for name, ns := range s.namespaces {
		if len(ns.values) == 0 {
			continue
		}
		rec.Namespaces[name] = namespaceRecord{
			Values:    ns.values,
			ExpiresAt: ns.expiresAt,
			TTL:       ns.ttl,
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return data, nil
}

// Decode rebuilds a stored session, dropping namespaces that have expired.
func Decode(id string, data []byte, defaultTTL time.Duration, now func() time.Time) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	s := New(defaultTTL, now)
	s.id = id
	s.isNew = false

	current := s.now()
	for name, nr := range rec.Namespaces {
		if !nr.ExpiresAt.After(current) {
			s.dirty = true
			continue
		}
		values := nr.Values
		if values == nil {
			values = make(map[string]any)
		}
		ttl := nr.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		s.namespaces[name] = &Namespace{
			name:      name,
			session:   s,
			values:    values,
			expiresAt: nr.ExpiresAt,
			ttl:       ttl,
		}
	}
	return s, nil
}

// Namespace is a TTL-bound key/value bucket inside a session.
type Namespace struct {
	name      string
	session   *Session
	values    map[string]any
	expiresAt time.Time
	ttl       time.Duration
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// Get returns the raw value stored under key.
func (n *Namespace) Get(key string) (any, bool) {
	v, ok := n.values[key]
	return v, ok
}

// String returns the value under key if it is a string.
func (n *Namespace) String(key string) (string, bool) {
	v, ok := n.values[key].(string)
	return v, ok
}

// Bool returns the value under key if it is a bool.
func (n *Namespace) Bool(key string) (bool, bool) {
	v, ok := n.values[key].(bool)
	return v, ok
}

// Set stores value under key and slides the namespace expiry.
func (n *Namespace) Set(key string, value any) {
	n.values[key] = value
	n.touch()
}

// Delete removes key from the namespace.
func (n *Namespace) Delete(key string) {
	if _, ok := n.values[key]; !ok {
		return
	}
	delete(n.values, key)
	n.session.dirty = true
}

// Destroy removes the namespace and all of its values from the session.
func (n *Namespace) Destroy() {
	n.values = make(map[string]any)
	n.expiresAt = time.Time{}
	delete(n.session.namespaces, n.name)
	n.session.dirty = true
}

// SetExpiration sets the namespace TTL and, when it holds values, restarts
// its expiry from now.
func (n *Namespace) SetExpiration(ttl time.Duration) {
	n.ttl = ttl
	if len(n.values) > 0 {
		n.touch()
	}
}

// ExpiresAt returns when the namespace expires; zero when it is empty.
func (n *Namespace) ExpiresAt() time.Time {
	return n.expiresAt
}

// Len returns the number of stored values.
func (n *Namespace) Len() int {
	return len(n.values)
}

func (n *Namespace) touch() {
	// a destroyed namespace re-attaches itself on the next write
	if _, ok := n.session.namespaces[n.name]; !ok {
		n.session.namespaces[n.name] = n
	}
	n.expiresAt = n.session.now().Add(n.ttl)
	n.session.dirty = true
}
