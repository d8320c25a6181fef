// Package statestore implements the engine's shared state container: a
// snapshot-based store with keyed change events, a bounded undo history, and
// the error/notification surface every other component publishes through.
package statestore

import (
	"sync"
	"time"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// Mode selects which analysis flow the session is in.
type Mode string

const (
	ModePoint  Mode = "point"
	ModeRegion Mode = "region"
)

// Event names fired on mutation.  Every mutation additionally fires
// EventStateChanged after the per-key events.
const (
	EventStateChanged         = "stateChanged"
	EventModeChanged          = "modeChanged"
	EventBusinessTypeChanged  = "businessTypeChanged"
	EventPageChanged          = "pageChanged"
	EventResultsChanged       = "resultsChanged"
	EventRegionChanged        = "regionChanged"
	EventLoadingChanged       = "loadingChanged"
	EventErrorsChanged        = "errorsChanged"
	EventNotificationsChanged = "notificationsChanged"
)

// DefaultHistoryDepth bounds the undo history.
const DefaultHistoryDepth = 10

// DefaultNotificationExpiry is applied to notifications that do not specify
// their own expiry and are not sticky.
const DefaultNotificationExpiry = 5 * time.Second

// NotificationKind classifies a notification for presentation.
type NotificationKind string

const (
	NoticeInfo    NotificationKind = "info"
	NoticeSuccess NotificationKind = "success"
	NoticeWarning NotificationKind = "warning"
	NoticeError   NotificationKind = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	ID      int64            `json:"id"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`

	// AutoExpire removes the notification after the given duration.  Zero
	// means DefaultNotificationExpiry unless Sticky is set.
	AutoExpire time.Duration `json:"auto_expire,omitempty"`
	Sticky     bool          `json:"sticky,omitempty"`
}

// ErrorEntry is a recorded failure visible in the state snapshot.
type ErrorEntry struct {
	ID      int64               `json:"id"`
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	At      time.Time           `json:"at"`
}

// Snapshot is the complete observable state of a session.  Get returns a deep
// copy; mutating a copy never affects the store.
type Snapshot struct {
	CurrentMode          Mode                      `json:"current_mode"`
	SelectedBusinessType string                    `json:"selected_business_type"`
	CurrentPage          string                    `json:"current_page"`
	AnalysisResults      []location.AnalysisResult `json:"analysis_results"`
	RegionPath           region.Path               `json:"region_path"`
	LoadingStates        map[string]bool           `json:"loading_states"`
	Errors               []ErrorEntry              `json:"errors"`
	Notifications        []Notification            `json:"notifications"`
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := s
	if s.AnalysisResults != nil {
		out.AnalysisResults = make([]location.AnalysisResult, len(s.AnalysisResults))
		copy(out.AnalysisResults, s.AnalysisResults)
	}
	if s.LoadingStates != nil {
		out.LoadingStates = make(map[string]bool, len(s.LoadingStates))
		for k, v := range s.LoadingStates {
			out.LoadingStates[k] = v
		}
	}
	if s.Errors != nil {
		out.Errors = make([]ErrorEntry, len(s.Errors))
		copy(out.Errors, s.Errors)
	}
	if s.Notifications != nil {
		out.Notifications = make([]Notification, len(s.Notifications))
		copy(out.Notifications, s.Notifications)
	}
	return out
}

// Partial describes a state mutation.  Nil fields are left untouched;
// non-nil fields replace the corresponding snapshot field wholesale.
type Partial struct {
	CurrentMode          *Mode
	SelectedBusinessType *string
	CurrentPage          *string
	AnalysisResults      *[]location.AnalysisResult
	RegionPath           *region.Path
	LoadingStates        *map[string]bool
	Errors               *[]ErrorEntry
	Notifications        *[]Notification
}

// Observer receives the post-mutation snapshot.
type Observer func(Snapshot)

type subscription struct {
	id int64
	fn Observer
}

// Store is the session state container.  All methods are safe for concurrent
// use; a single mutex serializes mutations so events fire in issue order.
// Observers run synchronously on the mutating goroutine, outside the lock,
// so an observer may read or mutate the store re-entrantly.
type Store struct {
	log logging.Logger

	mu           sync.Mutex
	state        Snapshot
	history      []Snapshot // oldest first, capped at historyDepth
	historyDepth int
	nextID       int64
	subs         map[string][]subscription
	nextSubID    int64
	timers       map[int64]*time.Timer
}

// Option customizes a Store.
type Option func(*Store)

// WithHistoryDepth overrides the undo history bound.
func WithHistoryDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.historyDepth = depth
		}
	}
}

// New constructs an empty Store.
func New(log logging.Logger, opts ...Option) *Store {
	s := &Store{
		log:          log.Named("state"),
		historyDepth: DefaultHistoryDepth,
		subs:         make(map[string][]subscription),
		timers:       make(map[int64]*time.Timer),
		state: Snapshot{
			CurrentMode:   ModePoint,
			LoadingStates: map[string]bool{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.state)
}

// Subscribe registers an observer for the named event and returns an
// unsubscribe function.  Use EventStateChanged to observe every mutation.
func (s *Store) Subscribe(event string, fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs[event] = append(s.subs[event], subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[event]
		for i, sub := range list {
			if sub.id == id {
				s.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Set applies a partial mutation, records the prior snapshot in the undo
// history, and fires the per-key events for every changed field followed by
// EventStateChanged.
func (s *Store) Set(p Partial) {
	s.mu.Lock()
	events := s.applyLocked(p, true)
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	s.dispatch(events, snap)
}

// SetFunc derives the mutation from the current snapshot atomically.
func (s *Store) SetFunc(f func(Snapshot) Partial) {
	s.mu.Lock()
	p := f(cloneSnapshot(s.state))
	events := s.applyLocked(p, true)
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	s.dispatch(events, snap)
}

// applyLocked merges p into the state and returns the per-key events to fire.
// Caller holds s.mu.
func (s *Store) applyLocked(p Partial, recordHistory bool) []string {
	if recordHistory {
		s.pushHistoryLocked()
	}

	var events []string
	if p.CurrentMode != nil && *p.CurrentMode != s.state.CurrentMode {
		s.state.CurrentMode = *p.CurrentMode
		events = append(events, EventModeChanged)
	}
	if p.SelectedBusinessType != nil && *p.SelectedBusinessType != s.state.SelectedBusinessType {
		s.state.SelectedBusinessType = *p.SelectedBusinessType
		events = append(events, EventBusinessTypeChanged)
	}
	if p.CurrentPage != nil && *p.CurrentPage != s.state.CurrentPage {
		s.state.CurrentPage = *p.CurrentPage
		events = append(events, EventPageChanged)
	}
	if p.AnalysisResults != nil {
		s.state.AnalysisResults = *p.AnalysisResults
		events = append(events, EventResultsChanged)
	}
	if p.RegionPath != nil && *p.RegionPath != s.state.RegionPath {
		s.state.RegionPath = *p.RegionPath
		events = append(events, EventRegionChanged)
	}
	if p.LoadingStates != nil {
		s.state.LoadingStates = *p.LoadingStates
		events = append(events, EventLoadingChanged)
	}
	if p.Errors != nil {
		s.state.Errors = *p.Errors
		events = append(events, EventErrorsChanged)
	}
	if p.Notifications != nil {
		s.state.Notifications = *p.Notifications
		events = append(events, EventNotificationsChanged)
	}
	return events
}

func (s *Store) pushHistoryLocked() {
	s.history = append(s.history, cloneSnapshot(s.state))
	if len(s.history) > s.historyDepth {
		s.history = s.history[len(s.history)-s.historyDepth:]
	}
}

// GoBack restores the most recent history snapshot.  Returns false when the
// history is empty.  The restore itself is not recorded in history.
func (s *Store) GoBack() bool {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return false
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.state = prev
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	s.dispatch([]string{EventStateChanged}, snap)
	return true
}

// HistoryLen reports how many snapshots can be undone.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// dispatch runs the observers for each event, then the catch-all, outside the
// lock.  A panicking observer is recovered and logged so the remaining
// observers still run and the store stays consistent.
func (s *Store) dispatch(events []string, snap Snapshot) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		// The catch-all runs exactly once, in the dedicated pass below, even
		// when it is the only event of the mutation.
		if ev == EventStateChanged {
			continue
		}
		for _, sub := range s.subscribers(ev) {
			s.safeNotify(ev, sub.fn, snap)
		}
	}
	for _, sub := range s.subscribers(EventStateChanged) {
		s.safeNotify(EventStateChanged, sub.fn, snap)
	}
}

func (s *Store) subscribers(event string) []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[event]
	out := make([]subscription, len(list))
	copy(out, list)
	return out
}

func (s *Store) safeNotify(event string, fn Observer, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("observer panicked",
				logging.String("event", event),
				logging.Any("panic", r))
		}
	}()
	fn(cloneSnapshot(snap))
}

// ─────────────────────────────────────────────────────────────────────────────
// Errors and notifications
// ─────────────────────────────────────────────────────────────────────────────

// AddError records a failure in the snapshot and returns its id.
func (s *Store) AddError(code apperrors.ErrorCode, message string) int64 {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	entry := ErrorEntry{ID: id, Code: code, Message: message, At: time.Now()}
	errs := append([]ErrorEntry{}, s.state.Errors...)
	errs = append(errs, entry)
	events := s.applyLocked(Partial{Errors: &errs}, false)
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	s.dispatch(events, snap)
	return id
}

// ClearErrors removes all recorded errors.
func (s *Store) ClearErrors() {
	empty := []ErrorEntry{}
	s.mu.Lock()
	events := s.applyLocked(Partial{Errors: &empty}, false)
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()
	s.dispatch(events, snap)
}

// Notify surfaces a notification and returns its id.  Unless the
// notification is sticky, a timer removes it after its expiry; removing it
// earlier cancels the timer.
func (s *Store) Notify(n Notification) int64 {
	s.mu.Lock()
	s.nextID++
	n.ID = s.nextID
	if n.Kind == "" {
		n.Kind = NoticeInfo
	}
	if n.AutoExpire == 0 && !n.Sticky {
		n.AutoExpire = DefaultNotificationExpiry
	}

	notices := append([]Notification{}, s.state.Notifications...)
	notices = append(notices, n)
	events := s.applyLocked(Partial{Notifications: &notices}, false)

	if !n.Sticky {
		id := n.ID
		s.timers[id] = time.AfterFunc(n.AutoExpire, func() {
			s.RemoveNotification(id)
		})
	}
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	s.dispatch(events, snap)
	return n.ID
}

// RemoveNotification drops the notification with the given id, cancelling its
// expiry timer.  Removing an unknown id is a no-op.
func (s *Store) RemoveNotification(id int64) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}

	found := false
	notices := make([]Notification, 0, len(s.state.Notifications))
	for _, n := range s.state.Notifications {
		if n.ID == id {
			found = true
			continue
		}
		notices = append(notices, n)
	}
	if !found {
		s.mu.Unlock()
		return
	}
	events := s.applyLocked(Partial{Notifications: &notices}, false)
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	s.dispatch(events, snap)
}

// SetLoading flips one loading flag.
func (s *Store) SetLoading(key string, loading bool) {
	s.SetFunc(func(snap Snapshot) Partial {
		states := snap.LoadingStates
		if states == nil {
			states = map[string]bool{}
		}
		states[key] = loading
		return Partial{LoadingStates: &states}
	})
}

// Close stops all pending notification timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Ptr returns a pointer to v, easing Partial construction at call sites.
func Ptr[T any](v T) *T { return &v }
