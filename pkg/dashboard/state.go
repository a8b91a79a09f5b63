package dashboard

import (
	"log/slog"
	"sync"
	"time"
)

// Dashboard views the assistant can navigate to.
const (
	ViewOverview = "overview"
	ViewAnalysis = "analysis"
)

// Delegation records an analysis task the user delegated through the assistant.
type Delegation struct {
	Topic     string    `json:"topic"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a transient user-facing notice raised by tool handlers.
type Notification struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Filters is the dashboard's current filter selection.
type Filters struct {
	Platform   string `json:"platform"`
	Region     string `json:"region"`
	SearchTerm string `json:"search_term"`
}

// Snapshot is a read-only copy of the dashboard state.
type Snapshot struct {
	Filters         Filters        `json:"filters"`
	SelectedProduct string         `json:"selected_product"`
	View            string         `json:"view"`
	Delegations     []Delegation   `json:"delegations"`
	Notifications   []Notification `json:"notifications"`
}

// State is the shared dashboard state mutated by tool handlers.
//
// Setters are fire-and-forget from the engine's perspective: handlers apply
// them sequentially within one tool batch and never read a return value.
// The mutex exists because the widget channel reads snapshots concurrently,
// not because tool dispatch is parallel (it is not).
type State struct {
	mu              sync.RWMutex
	filters         Filters
	selectedProduct string
	view            string
	delegations     []Delegation
	notifications   []Notification

	// navHook is invoked once per navigation request, typically wired to
	// the widget channel pushing a navigate frame.
	navHook func(view string)
}

// NewState creates the dashboard state starting on the overview.
func NewState() *State {
	return &State{view: ViewOverview}
}

// SetNavigationHook installs the callback fired by RequestNavigation.
func (s *State) SetNavigationHook(hook func(view string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navHook = hook
}

// SetPlatformFilter sets the marketplace platform filter.
func (s *State) SetPlatformFilter(platform string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Platform = platform
}

// SetRegionFilter sets the region filter.
func (s *State) SetRegionFilter(region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Region = region
}

// SetSearchTerm sets the free-text product search term.
func (s *State) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.SearchTerm = term
}

// SetSelectedProduct sets the currently selected product.
func (s *State) SetSelectedProduct(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedProduct = name
}

// RecordDelegation appends a delegated analysis request.
func (s *State) RecordDelegation(topic, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegations = append(s.delegations, Delegation{
		Topic:     topic,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
}

// PushNotification raises a user-facing notification.
func (s *State) PushNotification(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, Notification{
		Text:      text,
		CreatedAt: time.Now(),
	})
}

// RequestNavigation switches the active view and fires the navigation hook.
func (s *State) RequestNavigation(view string) {
	s.mu.Lock()
	s.view = view
	hook := s.navHook
	s.mu.Unlock()

	slog.Debug("Navigation requested", "view", view)
	if hook != nil {
		hook(view)
	}
}

// CurrentFilters returns a copy of the active filters.
func (s *State) CurrentFilters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Snapshot returns a read-only copy of the full dashboard state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Filters:         s.filters,
		SelectedProduct: s.selectedProduct,
		View:            s.view,
		Delegations:     make([]Delegation, len(s.delegations)),
		Notifications:   make([]Notification, len(s.notifications)),
	}
	copy(snap.Delegations, s.delegations)
	copy(snap.Notifications, s.notifications)
	return snap
}
