package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"messenger-gateway/model"

	"github.com/zishang520/engine.io/v2/log"
)

const MaxNotifications = 20

var logger = log.NewLog("gateway:notification")

var ErrOutOfRange = errors.New("notification index out of range")

type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

// Notifier performs a side effect for a novel notification. Failures are
// ignored by the Aggregator.
type Notifier interface {
	Notify(ctx context.Context, event model.NotificationEvent) error
}

type NotifierFunc func(ctx context.Context, event model.NotificationEvent) error

func (f NotifierFunc) Notify(ctx context.Context, event model.NotificationEvent) error {
	return f(ctx, event)
}

type Option func(*Aggregator)

// WithSound registers a notifier that runs for every novel event while
// permission is granted.
func WithSound(n Notifier) Option {
	return func(a *Aggregator) { a.sound = n }
}

// WithPlatform registers a notifier that runs only while permission is
// granted.
func WithPlatform(n Notifier) Option {
	return func(a *Aggregator) { a.platform = n }
}

func WithPermission(p Permission) Option {
	return func(a *Aggregator) { a.permission = p }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// Aggregator keeps the most recent notification events, newest first.
type Aggregator struct {
	mu         sync.Mutex
	items      []model.NotificationEvent
	unseen     int
	permission Permission

	sound    Notifier
	platform Notifier
	timeout  time.Duration

	lmu       sync.Mutex
	listeners []func([]model.NotificationEvent, int)
	effects   sync.WaitGroup
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		items:   []model.NotificationEvent{},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// sameEvent matches on the sender-assigned id or on the (type, correlation
// id, timestamp) triple.
func sameEvent(a, b model.NotificationEvent) bool {
	if a.Id != "" && a.Id == b.Id {
		return true
	}
	return a.Type == b.Type && a.CorrelationId() == b.CorrelationId() && a.Timestamp == b.Timestamp
}

// Add prepends a novel event and truncates the list to MaxNotifications.
// It reports false for a duplicate.
func (a *Aggregator) Add(event model.NotificationEvent) bool {
	a.mu.Lock()
	for _, item := range a.items {
		if sameEvent(item, event) {
			a.mu.Unlock()
			logger.Debug("duplicate %s notification for %s dropped", event.Type, event.CorrelationId())
			return false
		}
	}
	items := make([]model.NotificationEvent, 0, MaxNotifications)
	items = append(items, event)
	items = append(items, a.items...)
	if len(items) > MaxNotifications {
		items = items[:MaxNotifications]
	}
	a.items = items
	a.unseen = min(a.unseen+1, len(items))
	permission := a.permission
	snapshot, unseen := a.snapshotLocked(), a.unseen
	a.mu.Unlock()

	a.notify(snapshot, unseen)
	a.runEffects(event, permission)
	return true
}

func (a *Aggregator) runEffects(event model.NotificationEvent, permission Permission) {
	if permission != PermissionGranted {
		return
	}
	if a.sound != nil {
		a.bestEffort("sound", a.sound, event)
	}
	if a.platform != nil {
		a.bestEffort("platform", a.platform, event)
	}
}

func (a *Aggregator) bestEffort(kind string, n Notifier, event model.NotificationEvent) {
	a.effects.Add(1)
	go func() {
		defer a.effects.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Debug("%s notifier panicked: %v", kind, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := n.Notify(ctx, event); err != nil {
			logger.Debug("%s notifier failed: %v", kind, err)
		}
	}()
}

// Wait blocks until every side effect started so far has finished.
func (a *Aggregator) Wait() {
	a.effects.Wait()
}

// Dismiss removes the entry at index. The list is left alone for an out
// of range index.
func (a *Aggregator) Dismiss(index int) error {
	a.mu.Lock()
	if index < 0 || index >= len(a.items) {
		a.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	items := make([]model.NotificationEvent, 0, len(a.items)-1)
	items = append(items, a.items[:index]...)
	items = append(items, a.items[index+1:]...)
	a.items = items
	a.unseen = min(a.unseen, len(items))
	snapshot, unseen := a.snapshotLocked(), a.unseen
	a.mu.Unlock()

	a.notify(snapshot, unseen)
	return nil
}

func (a *Aggregator) ClearAll() {
	a.mu.Lock()
	a.items = []model.NotificationEvent{}
	a.unseen = 0
	a.mu.Unlock()

	a.notify([]model.NotificationEvent{}, 0)
}

// MarkSeen resets the badge counter, as when the dropdown is opened.
func (a *Aggregator) MarkSeen() {
	a.mu.Lock()
	a.unseen = 0
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snapshot, 0)
}

func (a *Aggregator) SetPermission(p Permission) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.permission = p
}

func (a *Aggregator) Permission() Permission {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.permission
}

func (a *Aggregator) List() []model.NotificationEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// At returns the entry at index.
func (a *Aggregator) At(index int) (model.NotificationEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.items) {
		return model.NotificationEvent{}, false
	}
	return a.items[index], true
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Unseen is the badge counter.
func (a *Aggregator) Unseen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unseen
}

// OnChange registers fn for every list change and returns a closure that
// removes it. fn gets the list and the badge counter of the same change.
func (a *Aggregator) OnChange(fn func(items []model.NotificationEvent, unseen int)) func() {
	a.lmu.Lock()
	defer a.lmu.Unlock()
	a.listeners = append(a.listeners, fn)
	index := len(a.listeners) - 1

	// slots are never compacted, so index stays valid
	return func() {
		a.lmu.Lock()
		defer a.lmu.Unlock()
		a.listeners[index] = nil
	}
}

func (a *Aggregator) snapshotLocked() []model.NotificationEvent {
	return append([]model.NotificationEvent(nil), a.items...)
}

func (a *Aggregator) notify(items []model.NotificationEvent, unseen int) {
	a.lmu.Lock()
	listeners := slices.Clone(a.listeners)
	a.lmu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(items, unseen)
		}
	}
}
