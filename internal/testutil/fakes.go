package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/georemind/internal/geofence"
	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/notify"
	"github.com/roach88/georemind/internal/reminder"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// FakeRegistry is an in-memory geofence.Registry with failure injection.
type FakeRegistry struct {
	*geofence.MemoryRegistry

	mu          sync.Mutex
	reject      map[string]bool
	failRemove  bool
	addCalls    int
	removeCalls int
}

// NewFakeRegistry creates an empty FakeRegistry.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		MemoryRegistry: geofence.NewMemoryRegistry(),
		reject:         make(map[string]bool),
	}
}

// Reject makes Add fail for id until Accept is called.
func (r *FakeRegistry) Reject(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject[id] = true
}

// Accept undoes Reject.
func (r *FakeRegistry) Accept(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reject, id)
}

// FailRemove makes RemoveAll fail while on is true.
func (r *FakeRegistry) FailRemove(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failRemove = on
}

// Add implements geofence.Registry.
func (r *FakeRegistry) Add(ctx context.Context, g geofence.Geofence) error {
	r.mu.Lock()
	r.addCalls++
	rejected := r.reject[g.ID]
	r.mu.Unlock()
	if rejected {
		return fmt.Errorf("add %s: %w", g.ID, ErrInjected)
	}
	return r.MemoryRegistry.Add(ctx, g)
}

// RemoveAll implements geofence.Registry.
func (r *FakeRegistry) RemoveAll(ctx context.Context) error {
	r.mu.Lock()
	r.removeCalls++
	fail := r.failRemove
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("remove all: %w", ErrInjected)
	}
	return r.MemoryRegistry.RemoveAll(ctx)
}

// RemoveCalls returns how many times RemoveAll was called.
func (r *FakeRegistry) RemoveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeCalls
}

// AddCalls returns how many times Add was called.
func (r *FakeRegistry) AddCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addCalls
}

// FakeLocationSource is a location.Source driven by Deliver.
type FakeLocationSource struct {
	mu       sync.Mutex
	denied   bool
	failWith error
	onFix    func(location.Fix)
	cfg      location.Config
	requests int
	removals int
}

// NewFakeLocationSource creates a FakeLocationSource with permission granted.
func NewFakeLocationSource() *FakeLocationSource {
	return &FakeLocationSource{}
}

// SetPermission grants or revokes location permission for later requests.
func (s *FakeLocationSource) SetPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied = !granted
}

// FailWith makes later requests fail with err; nil clears it.
func (s *FakeLocationSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// RequestUpdates implements location.Source.
func (s *FakeLocationSource) RequestUpdates(_ context.Context, cfg location.Config, onFix func(location.Fix)) (location.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.denied {
		return nil, location.ErrPermissionDenied
	}
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.onFix = onFix
	s.cfg = cfg
	return &fakeSubscription{source: s}, nil
}

// Deliver hands fix to the current subscriber. Returns false when there is
// none.
func (s *FakeLocationSource) Deliver(fix location.Fix) bool {
	s.mu.Lock()
	onFix := s.onFix
	s.mu.Unlock()
	if onFix == nil {
		return false
	}
	onFix(fix)
	return true
}

// Subscribed reports whether a subscription is live.
func (s *FakeLocationSource) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onFix != nil
}

// Config returns the configuration of the last successful request.
func (s *FakeLocationSource) Config() location.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Requests returns how many times RequestUpdates was called.
func (s *FakeLocationSource) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Removals returns how many subscriptions were removed.
func (s *FakeLocationSource) Removals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removals
}

type fakeSubscription struct {
	source *FakeLocationSource
	once   sync.Once
}

func (f *fakeSubscription) Remove(context.Context) error {
	f.once.Do(func() {
		f.source.mu.Lock()
		defer f.source.mu.Unlock()
		f.source.onFix = nil
		f.source.removals++
	})
	return nil
}

// Notification is one call recorded by RecordingNotifier.
type Notification struct {
	Channel    string
	Content    notify.Content
	Foreground bool
}

// RecordingNotifier records every notification it receives.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
	err   error
}

// NewRecordingNotifier creates an empty RecordingNotifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// FailWith makes Notify return err; nil clears it. Failed calls are still
// recorded.
func (n *RecordingNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notify implements notify.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, channel string, c notify.Content) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Channel: channel, Content: c})
	return n.err
}

// Foreground implements notify.Foregrounder.
func (n *RecordingNotifier) Foreground(_ context.Context, channel string, c notify.Content) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Channel: channel, Content: c, Foreground: true})
	return nil
}

// Notifications returns the recorded calls excluding foreground requests.
func (n *RecordingNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, c := range n.calls {
		if !c.Foreground {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the rendered text of every non-foreground notification.
func (n *RecordingNotifier) Texts() []string {
	var out []string
	for _, c := range n.Notifications() {
		out = append(out, c.Content.Text())
	}
	return out
}

// Foregrounds returns how many foreground requests were recorded.
func (n *RecordingNotifier) Foregrounds() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, c := range n.calls {
		if c.Foreground {
			count++
		}
	}
	return count
}

// Last returns the most recent non-foreground notification.
func (n *RecordingNotifier) Last() (Notification, bool) {
	all := n.Notifications()
	if len(all) == 0 {
		return Notification{}, false
	}
	return all[len(all)-1], true
}

// PlainNotifier forwards to a RecordingNotifier but is not a
// notify.Foregrounder.
type PlainNotifier struct {
	Recorder *RecordingNotifier
}

// Notify implements notify.Notifier.
func (n PlainNotifier) Notify(ctx context.Context, channel string, c notify.Content) error {
	return n.Recorder.Notify(ctx, channel, c)
}

// FakeReminderSource is an in-memory reminder source that re-emits the full
// collection after every mutation.
type FakeReminderSource struct {
	mu          sync.Mutex
	reminders   []reminder.Reminder
	err         error
	observers   map[int]func(reminder.Snapshot)
	nextID      int
	completeErr error
	completed   []string
}

// NewFakeReminderSource creates a source holding rs.
func NewFakeReminderSource(rs ...reminder.Reminder) *FakeReminderSource {
	return &FakeReminderSource{
		reminders: append([]reminder.Reminder(nil), rs...),
		observers: make(map[int]func(reminder.Snapshot)),
	}
}

// Observe emits the current collection to fn, then again after every
// mutation, until cancel is called.
func (s *FakeReminderSource) Observe(_ context.Context, fn func(reminder.Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	fn(s.snapshotLocked())
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Set replaces the collection and clears any failure.
func (s *FakeReminderSource) Set(rs ...reminder.Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append([]reminder.Reminder(nil), rs...)
	s.err = nil
	s.publishLocked()
}

// Fail emits an upstream failure.
func (s *FakeReminderSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.publishLocked()
}

// FailComplete makes Complete return err; nil clears it.
func (s *FakeReminderSource) FailComplete(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeErr = err
}

// Complete marks id completed and re-emits.
func (s *FakeReminderSource) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			s.reminders[i].Completed = true
			s.completed = append(s.completed, id)
			s.publishLocked()
			return nil
		}
	}
	return fmt.Errorf("reminder %s: not found", id)
}

// Completed returns the ids passed to successful Complete calls, in order.
func (s *FakeReminderSource) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.completed...)
}

// Observers returns the number of live observers.
func (s *FakeReminderSource) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

func (s *FakeReminderSource) snapshotLocked() reminder.Snapshot {
	if s.err != nil {
		return reminder.Snapshot{Err: s.err}
	}
	return reminder.Snapshot{Reminders: append([]reminder.Reminder(nil), s.reminders...)}
}

func (s *FakeReminderSource) publishLocked() {
	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}
