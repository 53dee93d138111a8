// Package subscription implements C4, the consumer-side subscription
// manager of spec.md §4.4: tracks outstanding subscriptions, schedules
// missed-publication alerts, and delivers publications to callbacks.
package subscription

import (
	"sync"
	"time"

	"github.com/joynr-go/joynr/pkg/joynrerrors"
	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/joynrmetrics"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/timerservice"
)

var logger = joynrlog.For("subscription")

// Callback receives publications (or delivery errors such as a missed
// publication) for one subscription.
type Callback struct {
	// InterfaceTypeTag selects the typed deserializer for this
	// subscription's published values.
	InterfaceTypeTag string
	OnPublication    func(payload model.PublicationPayload)
	OnError          func(err error)
}

type state struct {
	subscriptionID model.SubscriptionID
	callback       Callback
	qos            model.SubscriptionQos
	expiryHandle   timerservice.Handle
	alertHandle    timerservice.Handle
	lastTouchedAt  time.Time
}

// Manager is C4.
type Manager struct {
	timers *timerservice.Service

	mu   sync.Mutex
	subs map[model.SubscriptionID]*state
}

// New constructs a subscription manager using timers for expiry and
// missed-publication alert scheduling.
func New(timers *timerservice.Service) *Manager {
	return &Manager{timers: timers, subs: make(map[model.SubscriptionID]*state)}
}

// Register installs or updates a subscription (spec.md §4.4).
//
// If request.SubscriptionID is already known, this is treated as an
// update: any existing missed-publication alert is canceled and the
// qos refreshed, with the racing-update rule applied to the expiry
// schedule (an enlarged expiry extends it; a reduced one is ignored in
// favor of the existing, later, fire time).
func (m *Manager) Register(request model.SubscriptionRequestPayload, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, existed := m.subs[request.SubscriptionID]
	if !existed {
		st = &state{subscriptionID: request.SubscriptionID}
		m.subs[request.SubscriptionID] = st
	} else {
		m.timers.Cancel(st.alertHandle)
		st.alertHandle = 0
	}

	st.callback = cb
	st.qos = request.Qos
	st.lastTouchedAt = time.Now()

	m.scheduleExpiryLocked(st, existed)
	m.scheduleAlertLocked(st)
}

// scheduleExpiryLocked applies spec.md §4.4's racing-update rule: on a
// fresh registration, schedule the expiry as given; on an update,
// extend a later expiry but leave an earlier (already-scheduled,
// still-later) fire time alone.
func (m *Manager) scheduleExpiryLocked(st *state, existed bool) {
	if !st.qos.HasExpiry() {
		if existed {
			m.timers.Cancel(st.expiryHandle)
			st.expiryHandle = 0
		}
		return
	}

	newExpiry := st.qos.Expiry
	if existed && st.expiryHandle != 0 {
		if current, ok := m.timers.NextFireTime(st.expiryHandle); ok && current.After(newExpiry) {
			// Existing schedule already fires later than the new
			// (smaller) expiry would: the earlier (existing) expiry
			// wins per spec.md §4.4.
			return
		}
		m.timers.Reschedule(st.expiryHandle, newExpiry)
		return
	}

	id := st.subscriptionID
	st.expiryHandle = m.timers.At(newExpiry, func() {
		m.Unregister(id)
	})
}

func (m *Manager) scheduleAlertLocked(st *state) {
	if !st.qos.HasAlert() {
		return
	}
	id := st.subscriptionID
	period := st.qos.AlertAfterInterval
	st.alertHandle = m.timers.Every(period, func() {
		m.fireMissedAlert(id)
	})
}

func (m *Manager) fireMissedAlert(id model.SubscriptionID) {
	m.mu.Lock()
	st, ok := m.subs[id]
	var cb Callback
	if ok {
		cb = st.callback
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	joynrmetrics.PublicationsMissed.Inc()
	if cb.OnError != nil {
		cb.OnError(&joynrerrors.PublicationMissedError{SubscriptionID: id})
	}
}

// OnPublication delivers a publication (or error) for subscriptionID,
// first resetting its missed-publication alert clock. Unknown
// subscription ids are dropped (the caller, pkg/dispatcher, logs a
// warning per spec.md §4.6).
func (m *Manager) OnPublication(payload model.PublicationPayload) bool {
	m.mu.Lock()
	st, ok := m.subs[payload.SubscriptionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	st.lastTouchedAt = time.Now()
	m.timers.Reschedule(st.alertHandle, st.lastTouchedAt.Add(st.qos.AlertAfterInterval))
	cb := st.callback
	m.mu.Unlock()

	if cb.OnPublication != nil {
		cb.OnPublication(payload)
	}
	return true
}

// Unregister cancels alerts and removes subscription state.
// Unregistering an unknown id is a silent no-op (spec.md §4.4, §8).
func (m *Manager) Unregister(id model.SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.subs[id]
	if !ok {
		return
	}
	m.timers.Cancel(st.expiryHandle)
	m.timers.Cancel(st.alertHandle)
	delete(m.subs, id)
}

// Has reports whether id is a currently tracked subscription (test
// helper and diagnostics use only).
func (m *Manager) Has(id model.SubscriptionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[id]
	return ok
}

// Count returns the number of tracked subscriptions, reported at
// pkg/admin's /status through capabilities.StatusProvider.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
