// Package viewer mirrors the ownership rules for the signed-in subject so
// pages can show or hide edit and delete controls. Every check denies until
// the subject has been loaded.
package viewer

import (
	"context"
	"sync"

	"github.com/diewo77/stockroom/internal/ownership"
)

// SubjectFetcher loads the signed-in subject. A nil subject with a nil
// error means nobody is signed in.
type SubjectFetcher interface {
	FetchSubject(ctx context.Context) (*ownership.Subject, error)
}

// FetcherFunc adapts a function to SubjectFetcher.
type FetcherFunc func(ctx context.Context) (*ownership.Subject, error)

func (f FetcherFunc) FetchSubject(ctx context.Context) (*ownership.Subject, error) { return f(ctx) }

// State is the identity loading state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateResolved:
		return "resolved"
	default:
		return "uninitialized"
	}
}

// Viewer holds the current subject and answers permission questions.
type Viewer struct {
	fetcher SubjectFetcher

	mu      sync.RWMutex
	state   State
	subject *ownership.Subject
	err     error
	done    chan struct{}
}

// New returns an unloaded Viewer. A nil fetcher loads as nobody signed in.
func New(f SubjectFetcher) *Viewer {
	return &Viewer{fetcher: f, done: make(chan struct{})}
}

// Resolved returns a Viewer that already knows its subject.
func Resolved(s *ownership.Subject) *Viewer {
	v := New(nil)
	v.state = StateResolved
	v.subject = s
	close(v.done)
	return v
}

// Load fetches the subject once. Concurrent callers wait for the first
// fetch. A failed fetch resolves to no subject; the error is kept in Err.
func (v *Viewer) Load(ctx context.Context) error {
	v.mu.Lock()
	switch v.state {
	case StateResolved:
		err := v.err
		v.mu.Unlock()
		return err
	case StateLoading:
		v.mu.Unlock()
		return v.Wait(ctx)
	}
	v.state = StateLoading
	v.mu.Unlock()

	var (
		s   *ownership.Subject
		err error
	)
	if v.fetcher != nil {
		s, err = v.fetcher.FetchSubject(ctx)
	}

	v.mu.Lock()
	if err != nil {
		s = nil
	}
	v.subject, v.err, v.state = s, err, StateResolved
	close(v.done)
	v.mu.Unlock()
	return err
}

// Start loads in the background.
func (v *Viewer) Start(ctx context.Context) {
	go func() { _ = v.Load(ctx) }()
}

// Wait blocks until the subject is resolved or ctx is done.
func (v *Viewer) Wait(ctx context.Context) error {
	select {
	case <-v.done:
		return v.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *Viewer) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// IsLoading is true until the subject is resolved.
func (v *Viewer) IsLoading() bool {
	return v.State() != StateResolved
}

// Err is the fetch failure, if any.
func (v *Viewer) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// CurrentUser is nil until resolved and when nobody is signed in.
func (v *Viewer) CurrentUser() *ownership.Subject {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.state != StateResolved {
		return nil
	}
	return v.subject
}

func (v *Viewer) IsAdmin() bool {
	return ownership.IsAdmin(v.CurrentUser())
}

func (v *Viewer) IsOwner(r ownership.Resource) bool {
	return ownership.IsOwner(v.CurrentUser(), r)
}

// Can evaluates p for the current subject. It denies while loading.
func (v *Viewer) Can(p ownership.Permission, r ownership.Resource) bool {
	if v.IsLoading() {
		return false
	}
	return ownership.Decide(p, v.CurrentUser(), r)
}

func (v *Viewer) CanEdit(r ownership.Resource) bool {
	return v.Can(ownership.PermissionEdit, r)
}

func (v *Viewer) CanDelete(r ownership.Resource) bool {
	return v.Can(ownership.PermissionDelete, r)
}

func (v *Viewer) CanView(r ownership.Resource) bool {
	return v.Can(ownership.PermissionView, r)
}

// Decisions is ownership.Evaluate for the current subject. Every flag is
// false while loading.
func (v *Viewer) Decisions(r ownership.Resource) ownership.Decisions {
	if v.IsLoading() {
		return ownership.Decisions{}
	}
	return ownership.Evaluate(v.CurrentUser(), r)
}
