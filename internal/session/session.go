// Package session tracks storefront sessions: which collections a session
// owns, whether they live in the guest store or on the server, and the
// guest-to-customer transition that moves them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"storefront-sync/internal/catalog"
	"storefront-sync/internal/collection"
	"storefront-sync/internal/gateway"
	"storefront-sync/internal/localstore"
	"storefront-sync/internal/model"
	"storefront-sync/internal/reconcile"
	"storefront-sync/internal/view"
)

// Mode says which copy of the collections is authoritative.
type Mode int

const (
	Guest Mode = iota
	Authenticated
)

func (m Mode) String() string {
	if m == Authenticated {
		return "authenticated"
	}
	return "guest"
}

// MarshalText renders the mode as its name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "guest":
		*m = Guest
	case "authenticated":
		*m = Authenticated
	default:
		return fmt.Errorf("unknown session mode %q", text)
	}
	return nil
}

// GatewayFactory binds collection gateways to customer credentials.
// *gateway.Client satisfies it.
type GatewayFactory interface {
	Collection(kind model.CollectionKind, creds gateway.Credentials) gateway.CollectionGateway
}

// Session is one storefront visitor.
type Session struct {
	id       string
	scope    *localstore.Scoped
	gateways GatewayFactory
	engine   *reconcile.Engine
	logger   *slog.Logger

	controllers map[model.CollectionKind]*collection.Controller
	listing     *catalog.Listing

	// transition serializes Login and Logout; mu guards the fields below.
	transition sync.Mutex
	mu         sync.RWMutex
	mode       Mode
	creds      gateway.Credentials
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Controller returns the controller for kind.
func (s *Session) Controller(kind model.CollectionKind) *collection.Controller {
	return s.controllers[kind]
}

// Listing returns the session's product listing.
func (s *Session) Listing() *catalog.Listing {
	return s.listing
}

// LoginResult summarizes a Login.
type LoginResult struct {
	// AlreadyAuthenticated is set when the session was signed in before
	// the call and nothing was done.
	AlreadyAuthenticated bool
	Reports              []*reconcile.Report
}

// LoginError is returned when a Login leaves the session a guest. Merged
// lists the kinds whose guest items already reached the server and were
// cleared locally; they are not merged again on retry.
type LoginError struct {
	Merged []model.CollectionKind
	Err    error
}

func (e *LoginError) Error() string {
	if len(e.Merged) == 0 {
		return "login: " + e.Err.Error()
	}
	return fmt.Sprintf("login: %s (already merged: %v)", e.Err, e.Merged)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Login signs the session in. Each guest collection is merged into the
// server once and the controllers switch to the server collections.
// Mutations issued while the login runs wait for it and then apply to
// whichever mode the session ended up in.
//
// If any collection cannot be brought to a server state the session stays
// a guest and a *LoginError is returned.
func (s *Session) Login(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		return nil, model.NewValidationError("token", "required")
	}

	s.transition.Lock()
	defer s.transition.Unlock()

	if s.Mode() == Authenticated {
		return &LoginResult{AlreadyAuthenticated: true}, nil
	}

	// Pending guest writes must land before the store is read.
	if err := s.flush(ctx); err != nil {
		return nil, &LoginError{Err: err}
	}
	for _, kind := range model.Kinds {
		release := s.controllers[kind].Hold()
		defer release()
	}

	creds := gateway.Credentials{Token: token}
	result := &LoginResult{}
	gateways := make(map[model.CollectionKind]gateway.CollectionGateway, len(model.Kinds))
	server := make(map[model.CollectionKind]model.Collection, len(model.Kinds))

	var (
		errs   []error
		merged []model.CollectionKind
	)
	for _, kind := range model.Kinds {
		gw := s.gateways.Collection(kind, creds)
		items, report, err := s.merge(ctx, kind, gw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if report != nil {
			result.Reports = append(result.Reports, report)
			merged = append(merged, kind)
		}
		gateways[kind] = gw
		server[kind] = items
	}

	if len(errs) > 0 {
		for _, kind := range model.Kinds {
			s.controllers[kind].Load()
		}
		err := &LoginError{Merged: merged, Err: errors.Join(errs...)}
		s.logger.Warn("login failed, session stays guest", slog.String("error", err.Error()))
		return nil, err
	}

	for _, kind := range model.Kinds {
		s.controllers[kind].Authenticate(gateways[kind], server[kind])
	}

	s.mu.Lock()
	s.mode = Authenticated
	s.creds = creds
	s.mu.Unlock()

	s.logger.Info("session authenticated")
	return result, nil
}

// merge reconciles one kind and returns the authoritative collection.
func (s *Session) merge(ctx context.Context, kind model.CollectionKind, gw gateway.CollectionGateway) (model.Collection, *reconcile.Report, error) {
	report, err := s.engine.Reconcile(ctx, reconcile.Request{
		SessionID: s.id,
		Kind:      kind,
		Store:     s.scope,
		Gateway:   gw,
	})
	if err != nil {
		return nil, nil, err
	}
	if !report.Skipped {
		return report.Collection, report, nil
	}

	items, err := gw.FetchCollection(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s: %w", kind, err)
	}
	return items, nil, nil
}

// Logout returns the session to guest mode. The in-memory collections are
// emptied; nothing is written back to the guest store.
func (s *Session) Logout() {
	s.transition.Lock()
	defer s.transition.Unlock()

	if s.Mode() == Guest {
		return
	}
	for _, kind := range model.Kinds {
		release := s.controllers[kind].Hold()
		s.controllers[kind].SignOut()
		release()
	}

	s.mu.Lock()
	s.mode = Guest
	s.creds = gateway.Credentials{}
	s.mu.Unlock()

	s.logger.Info("session signed out")
}

// Info is the JSON view of a session.
type Info struct {
	ID          string                                 `json:"id"`
	Mode        Mode                                   `json:"mode"`
	Collections map[model.CollectionKind]view.Summary `json:"collections"`
}

// Info summarizes the session.
func (s *Session) Info() Info {
	info := Info{
		ID:          s.id,
		Mode:        s.Mode(),
		Collections: make(map[model.CollectionKind]view.Summary, len(s.controllers)),
	}
	for kind, ctl := range s.controllers {
		info.Collections[kind] = view.Totals(ctl.Items())
	}
	return info
}

// flush waits for in-flight confirmations on every controller.
func (s *Session) flush(ctx context.Context) error {
	for _, ctl := range s.controllers {
		if err := ctl.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}
