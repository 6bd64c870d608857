// Package registry holds the broker's per-application registration records.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// ChangeType indicates the type of registry change.
type ChangeType int

const (
	// ChangeTypeAdded indicates an application registered for the first time.
	ChangeTypeAdded ChangeType = iota
	// ChangeTypeRefreshed indicates an already registered application registered again.
	ChangeTypeRefreshed
	// ChangeTypeStatus indicates an application reported a new status.
	ChangeTypeStatus
	// ChangeTypeRemoved indicates a registration ended (see ChangeEvent.Reason).
	ChangeTypeRemoved
	// ChangeTypeGlobalStatus indicates the user changed the global status.
	ChangeTypeGlobalStatus
)

// String returns a short name for the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeTypeAdded:
		return "added"
	case ChangeTypeRefreshed:
		return "refreshed"
	case ChangeTypeStatus:
		return "status"
	case ChangeTypeRemoved:
		return "removed"
	case ChangeTypeGlobalStatus:
		return "global-status"
	default:
		return "unknown"
	}
}

// ChangeEvent signals registry content changes.
type ChangeEvent struct {
	Type   ChangeType
	AppID  string
	Status model.Status
	Reason model.RemovalReason
}

// Registry tracks registered applications with thread-safe operations.
type Registry struct {
	mu           sync.RWMutex
	apps         map[string]*model.Application
	globalStatus model.Status

	subscribers []*subscription
	closed      bool
}

// New creates an empty Registry with the given global status.
func New(initial model.Status) *Registry {
	if !initial.Valid() {
		initial = model.StatusAvailable
	}
	return &Registry{
		apps:         make(map[string]*model.Application),
		globalStatus: initial,
		subscribers:  make([]*subscription, 0),
	}
}

// Register records appID as registered. Registering again refreshes the
// menu path and owner and keeps the original token and status.
// The returned bool is true when the application was not registered before.
func (r *Registry) Register(appID, menuPath, owner string) (*model.Application, bool, error) {
	if err := model.ValidateAppID(appID); err != nil {
		return nil, false, err
	}
	if menuPath == "" {
		menuPath = model.ApplicationPath(appID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}

	if existing, ok := r.apps[appID]; ok {
		existing.MenuPath = menuPath
		existing.Owner = owner
		existing.UpdatedAt = time.Now()
		r.notifyChange(ChangeEvent{Type: ChangeTypeRefreshed, AppID: appID, Status: existing.Status})
		return existing.Clone(), false, nil
	}

	app, err := model.NewApplication(appID, menuPath, owner)
	if err != nil {
		return nil, false, err
	}
	r.apps[appID] = app
	r.notifyChange(ChangeEvent{Type: ChangeTypeAdded, AppID: appID, Status: app.Status})
	return app.Clone(), true, nil
}

// Unregister removes appID after an explicit UnregisterApplication.
func (r *Registry) Unregister(appID string) (*model.Application, error) {
	return r.remove(appID, model.RemovalUnregistered)
}

// StoppedRunning removes appID after its client handle was released.
func (r *Registry) StoppedRunning(appID string) (*model.Application, error) {
	return r.remove(appID, model.RemovalStopped)
}

func (r *Registry) remove(appID string, reason model.RemovalReason) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	app, ok := r.apps[appID]
	if !ok {
		return nil, ErrNotRegistered
	}
	delete(r.apps, appID)
	r.notifyChange(ChangeEvent{Type: ChangeTypeRemoved, AppID: appID, Status: app.Status, Reason: reason})
	return app, nil
}

// DropOwner removes every application owned by the given unique bus name.
// It returns the removed records sorted by id.
func (r *Registry) DropOwner(owner string) []model.Application {
	if owner == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	var dropped []model.Application
	for id, app := range r.apps {
		if app.Owner != owner {
			continue
		}
		delete(r.apps, id)
		dropped = append(dropped, *app)
		r.notifyChange(ChangeEvent{Type: ChangeTypeRemoved, AppID: id, Status: app.Status, Reason: model.RemovalVanished})
	}

	sort.Slice(dropped, func(i, j int) bool { return dropped[i].ID < dropped[j].ID })
	return dropped
}

// SetStatus records the status appID reports.
func (r *Registry) SetStatus(appID string, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	app, ok := r.apps[appID]
	if !ok {
		return ErrNotRegistered
	}
	app.Status = status
	app.StatusSet = true
	app.UpdatedAt = time.Now()
	r.notifyChange(ChangeEvent{Type: ChangeTypeStatus, AppID: appID, Status: status})
	return nil
}

// SetGlobalStatus records the status the user chose for all applications.
// It returns false when the status did not change.
func (r *Registry) SetGlobalStatus(status model.Status) (bool, error) {
	if !status.Valid() {
		return false, model.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrClosed
	}
	if r.globalStatus == status {
		return false, nil
	}
	r.globalStatus = status
	r.notifyChange(ChangeEvent{Type: ChangeTypeGlobalStatus, Status: status})
	return true, nil
}

// GlobalStatus returns the status the user last chose.
func (r *Registry) GlobalStatus() model.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.globalStatus
}

// Get returns a copy of the record for appID.
func (r *Registry) Get(appID string) (*model.Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[appID]
	if !ok {
		return nil, false
	}
	return app.Clone(), true
}

// IsRegistered reports whether appID has a record.
func (r *Registry) IsRegistered(appID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.apps[appID]
	return ok
}

// List returns copies of all records, oldest registration first.
func (r *Registry) List() []model.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Application, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, *app)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

// Count returns the number of registered applications.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}

// Subscribe returns a channel that receives change events of the given
// types, or of every type when none are given. Events are delivered in
// order and none are dropped, however slowly the channel is read.
func (r *Registry) Subscribe(types ...ChangeType) <-chan ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := newSubscription(types)
	if r.closed {
		sub.close()
		return sub.ch
	}
	r.subscribers = append(r.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscription. Undelivered events are discarded and
// the channel is closed.
func (r *Registry) Unsubscribe(ch <-chan ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, sub := range r.subscribers {
		if (<-chan ChangeEvent)(sub.ch) == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			sub.close()
			return
		}
	}
}

// Close closes all subscriber channels. Further mutations return ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, sub := range r.subscribers {
		sub.close()
	}
	r.subscribers = nil
	return nil
}

// notifyChange queues a change event for every subscriber. Callers hold mu.
func (r *Registry) notifyChange(event ChangeEvent) {
	for _, sub := range r.subscribers {
		sub.push(event)
	}
}

// Errors
var (
	ErrClosed        = registryError("registry is closed")
	ErrNotRegistered = registryError("application is not registered")
)

type registryError string

func (e registryError) Error() string {
	return string(e)
}
