// Package session owns the client's belief about who is logged in.
//
// The controller has two states, logged out (zero State) and logged in.
// Init, Login and Logout are the only transitions; each returns a
// Transition describing the new state, the events it produced in order, and
// where the caller should navigate next, if anywhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/store"
)

// StoreKey is where the credential record lives.
const StoreKey = "user"

// CreatePath is where legacy mode sends a freshly logged-in user.
const CreatePath = "/create/"

// ErrNoCredentials is the reason recorded when Init finds no stored record.
var ErrNoCredentials = errors.New("session: no stored credentials")

// Authenticator is the part of the bug service the controller calls.
type Authenticator interface {
	Login(ctx context.Context, creds bz.Credentials) (bz.LoginResult, error)
	Logout(ctx context.Context) error
	ValidLogin(ctx context.Context, creds bz.Credentials) error
}

// State is the current session. The zero value means logged out.
type State struct {
	Name string
}

// LoggedIn reports whether a user is logged in.
func (s State) LoggedIn() bool { return s.Name != "" }

func (s State) String() string {
	if !s.LoggedIn() {
		return "logged out"
	}
	return "logged in as " + s.Name
}

// EventKind names a session lifecycle event.
type EventKind int

const (
	EventLogin EventKind = iota + 1
	EventLogout
	EventInit
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	case EventInit:
		return "init"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by a transition. Name is set for login events.
type Event struct {
	Kind EventKind
	Name string
}

// Transition is the outcome of Init, Login or Logout.
type Transition struct {
	From     State
	To       State
	Events   []Event
	Redirect string
	// Reason explains a fall back to logged out during Init.
	Reason error
}

// Has reports whether the transition emitted an event of kind k.
func (t Transition) Has(k EventKind) bool {
	for _, e := range t.Events {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Controller is the single writer of the session state.
type Controller struct {
	auth   Authenticator
	store  store.Store
	legacy bool

	mu        sync.RWMutex
	state     State
	observers []func(Event)
}

// NewController creates a logged-out controller. In legacy mode a
// successful login redirects to the creation view instead of emitting a
// login event.
func NewController(auth Authenticator, st store.Store, legacy bool) *Controller {
	return &Controller{auth: auth, store: st, legacy: legacy}
}

// Observe registers fn to receive every event, synchronously and in order,
// after the state change is visible through State.
func (c *Controller) Observe(fn func(Event)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// State returns the current session.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns the logged-in user name.
func (c *Controller) User() (string, bool) {
	s := c.State()
	return s.Name, s.LoggedIn()
}

// Init restores the session from the stored credential record. It always
// emits exactly one of login or logout, followed by init.
func (c *Controller) Init(ctx context.Context) Transition {
	creds, err := c.stored()
	if err == nil {
		err = c.auth.ValidLogin(ctx, creds)
	}
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			debug.Log("session: stored login rejected: %v", err)
			c.clearStore()
		}
		t := c.apply(State{}, "", Event{Kind: EventLogout}, Event{Kind: EventInit})
		t.Reason = err
		return t
	}
	return c.apply(State{Name: creds.Login}, "", Event{Kind: EventLogin, Name: creds.Login}, Event{Kind: EventInit})
}

// Login authenticates and persists the resulting token. On failure the
// state and store are left untouched.
func (c *Controller) Login(ctx context.Context, email, password string) (Transition, bz.LoginResult, error) {
	res, err := c.auth.Login(ctx, bz.Credentials{Login: email, Password: password})
	if err != nil {
		return Transition{From: c.State(), To: c.State()}, bz.LoginResult{}, err
	}

	record, err := json.Marshal(bz.Credentials{Login: email, Token: res.Token})
	if err != nil {
		return Transition{From: c.State(), To: c.State()}, bz.LoginResult{}, fmt.Errorf("session: encoding credentials: %w", err)
	}
	if err := c.store.Set(StoreKey, string(record)); err != nil {
		// The login itself succeeded; the next start will ask again.
		debug.Log("session: persisting credentials: %v", err)
	}

	if c.legacy {
		return c.apply(State{Name: email}, CreatePath), res, nil
	}
	return c.apply(State{Name: email}, "", Event{Kind: EventLogin, Name: email}), res, nil
}

// Logout clears the stored record, tells the service, and always ends
// logged out with a redirect to the root path.
func (c *Controller) Logout(ctx context.Context) Transition {
	c.clearStore()
	if err := c.auth.Logout(ctx); err != nil {
		debug.Log("session: logout request failed: %v", err)
	}
	return c.apply(State{}, "/", Event{Kind: EventLogout})
}

func (c *Controller) stored() (bz.Credentials, error) {
	raw, err := c.store.Get(StoreKey)
	if err != nil {
		return bz.Credentials{}, fmt.Errorf("session: reading store: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return bz.Credentials{}, ErrNoCredentials
	}
	var creds bz.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return bz.Credentials{}, fmt.Errorf("session: decoding stored record: %w", err)
	}
	if creds.Login == "" {
		return bz.Credentials{}, errors.New("session: stored record has no login")
	}
	return creds, nil
}

func (c *Controller) clearStore() {
	if err := c.store.Set(StoreKey, ""); err != nil {
		debug.Log("session: clearing store: %v", err)
	}
}

func (c *Controller) apply(to State, redirect string, events ...Event) Transition {
	c.mu.Lock()
	from := c.state
	c.state = to
	observers := append([]func(Event){}, c.observers...)
	c.mu.Unlock()

	for _, e := range events {
		for _, fn := range observers {
			fn(e)
		}
	}
	return Transition{From: from, To: to, Events: events, Redirect: redirect}
}
