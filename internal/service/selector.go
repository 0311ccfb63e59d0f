package service

import (
	"context"
	"log"
	"sync"
)

// ChangeHook reacts to a new selector value.
type ChangeHook func(ctx context.Context, value string) error

// Selector is the page's view select control.
//
// On its own a change is only logged. Call OnChange to make changes do
// something, e.g. reload the map.
type Selector struct {
	mu    sync.RWMutex
	value string
	hook  ChangeHook
}

// NewSelector creates a selector showing initial.
func NewSelector(initial string) *Selector {
	return &Selector{value: initial}
}

// OnChange installs the change hook, replacing any previous one. nil unwires it.
func (s *Selector) OnChange(hook ChangeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Wired reports whether a change hook is installed.
func (s *Selector) Wired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hook != nil
}

// Value returns the selected value.
func (s *Selector) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Change records a new value, logs it and runs the hook if one is installed.
func (s *Selector) Change(ctx context.Context, value string) error {
	s.mu.Lock()
	s.value = value
	hook := s.hook
	s.mu.Unlock()

	log.Printf("selector: changed to %q", value)
	if hook == nil {
		return nil
	}
	return hook(ctx, value)
}

// LoadViewHook returns a hook that loads the selected view.
func LoadViewHook(v *Viewer) ChangeHook {
	return func(ctx context.Context, value string) error {
		_, err := v.LoadView(ctx, value)
		return err
	}
}
