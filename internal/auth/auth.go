// Package auth issues bearer tokens for the demo users and resolves them to
// principals for the permission gate.
package auth

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/permission"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// DefaultTTL is how long a session stays valid.
const DefaultTTL = 12 * time.Hour

// User is a login account and the principal it acts as.
type User struct {
	Username  string               `json:"username"`
	Password  string               `json:"-"`
	Email     string               `json:"email"`
	Title     string               `json:"title"`
	Brand     string               `json:"brand,omitempty"`
	Principal permission.Principal `json:"principal"`
}

// Session is an issued token.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	Pages     []string  `json:"pages"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service holds users and live sessions.
type Service struct {
	mu       sync.Mutex
	users    map[string]User
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
}

type Option func(*Service)

// WithUsers replaces the demo users.
func WithUsers(users ...User) Option {
	return func(s *Service) {
		s.users = make(map[string]User, len(users))
		for _, u := range users {
			s.users[strings.ToLower(u.Username)] = u
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service with the demo users.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions: make(map[string]Session),
		ttl:      DefaultTTL,
		now:      time.Now,
		newToken: uuid.NewString,
	}
	WithUsers(DemoUsers()...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the credentials and issues a token. Usernames are case
// insensitive.
func (s *Service) Login(username, password string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok || u.Password != password {
		return Session{}, ErrInvalidCredentials
	}
	now := s.now()
	sess := Session{
		Token:     s.newToken(),
		User:      u,
		Pages:     AccessiblePages(u.Principal.Role),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[sess.Token] = sess
	return sess, nil
}

// Resolve returns the session of a live token. Expired tokens are dropped.
func (s *Service) Resolve(token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrUnauthenticated
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, ErrUnauthenticated
	}
	return sess, nil
}

// Logout revokes a token. Unknown tokens are ignored.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Users lists the accounts ordered by username.
func (s *Service) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, name := range slices.Sorted(maps.Keys(s.users)) {
		out = append(out, s.users[name])
	}
	return out
}

// AccessiblePages lists the dashboard pages a role may open.
func AccessiblePages(role string) []string {
	switch role {
	case permission.RoleAdmin:
		return []string{"/", "/ontology", "/lineage", "/financial", "/factory", "/insights", "/data-management"}
	case "service_manager":
		return []string{"/", "/factory", "/ontology"}
	case "financial_analyst":
		return []string{"/", "/financial", "/insights", "/data-management"}
	default:
		return []string{"/"}
	}
}

// DemoUsers returns the built-in accounts.
func DemoUsers() []User {
	return []User{
		{
			Username: "admin", Password: "admin123",
			Email: "admin@tmhna.com", Title: "IT Administrator",
			Principal: permission.Principal{
				ID: "admin", Name: "System Administrator", Role: permission.RoleAdmin,
			},
		},
		{
			Username: "michael", Password: "service123",
			Email: "michael.reynolds@tmhna.com", Title: "Regional Service Operations Manager", Brand: "TMH",
			Principal: permission.Principal{
				ID: "michael", Name: "Michael Reynolds", Role: "service_manager",
				Permissions: []string{
					"service_manager", "service_dispatcher", "service_coordinator",
					"alert_responder", "fleet_manager",
				},
				Scopes: map[string][]string{"alert_types": {"Equipment", "Service"}},
			},
		},
		{
			Username: "sarah", Password: "finance123",
			Email: "sarah.martinez@tmhna.com", Title: "Senior Financial Planning & Analysis Lead", Brand: "Raymond + TMHNA",
			Principal: permission.Principal{
				ID: "sarah", Name: "Sarah Martinez", Role: "financial_analyst",
				Permissions: []string{"financial_analyst", "order_manager"},
			},
		},
		{
			Username: "dana", Password: "inventory123",
			Email: "dana.okafor@tmhna.com", Title: "Parts Distribution Manager",
			Principal: permission.Principal{
				ID: "dana", Name: "Dana Okafor", Role: "inventory_manager",
				Permissions: []string{"inventory_manager", "dc_supervisor", "alert_responder"},
				Scopes:      map[string][]string{"alert_types": {"Inventory"}},
			},
		},
		{
			Username: "priya", Password: "production123",
			Email: "priya.shah@tmhna.com", Title: "Plant Production Manager",
			Principal: permission.Principal{
				ID: "priya", Name: "Priya Shah", Role: "production_manager",
				Permissions: []string{"production_scheduler", "production_manager", "order_manager"},
			},
		},
		{
			Username: "wes", Password: "warranty123",
			Email: "wes.tanaka@tmhna.com", Title: "Warranty Analyst",
			Principal: permission.Principal{
				ID: "wes", Name: "Wes Tanaka", Role: "warranty_analyst",
				Permissions: []string{"warranty_analyst"},
			},
		},
	}
}
