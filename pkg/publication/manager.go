// Package publication implements C5, the provider-side publication
// manager of spec.md §4.5: holds active subscriptions, emits
// publications on attribute change or schedule, and holds queued
// subscription requests for not-yet-registered providers.
//
// The queued-vs-installed split and its drain-on-install idiom are
// grounded on controller/destination/dns.go's DnsWatcher, which keeps
// a map of host -> informer (our equivalent of target participant ->
// active subscriptions) and lazily creates/tears down state as
// listeners come and go.
package publication

import (
	"sync"
	"time"

	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/requestcallers"
	"github.com/joynr-go/joynr/pkg/timerservice"
)

var logger = joynrlog.For("publication")

// Sender routes a fully-formed publication message to its subscriber.
// Implemented by pkg/dispatcher on top of pkg/transport.
type Sender interface {
	SendPublication(to model.ParticipantID, payload model.PublicationPayload, ttl time.Duration) error
}

// pendingRequest bundles a subscription request with the information needed
// to install it once its target provider shows up.
type pendingRequest struct {
	from    model.ParticipantID
	request model.SubscriptionRequestPayload
	sender  Sender
}

// active is one installed, live subscription a provider is publishing
// into.
type active struct {
	from           model.ParticipantID
	to             model.ParticipantID
	caller         requestcallers.RequestCaller
	sender         Sender
	qos            model.SubscriptionQos
	nextEmitHandle timerservice.Handle
	lastValueHash  uint64
	hasLastValue   bool
	// valueProvider, when set, lets the recurring MaxIntervalMs timer
	// re-emit the attribute's current value even absent a change
	// (periodic publications, spec.md §4.5 "Emission").
	valueProvider func() model.PublicationPayload
}

// Manager is C5.
type Manager struct {
	timers *timerservice.Service

	mu      sync.Mutex
	queued  map[model.ParticipantID][]pendingRequest
	active  map[model.SubscriptionID]*active
	byOwner map[model.ParticipantID]map[model.SubscriptionID]struct{}
}

// New constructs an empty publication manager.
func New(timers *timerservice.Service) *Manager {
	return &Manager{
		timers:  timers,
		queued:  make(map[model.ParticipantID][]pendingRequest),
		active:  make(map[model.SubscriptionID]*active),
		byOwner: make(map[model.ParticipantID]map[model.SubscriptionID]struct{}),
	}
}

// AddQueued queues a subscription request for a provider that is not
// yet registered (spec.md §4.5, ingress path 1).
func (m *Manager) AddQueued(from, to model.ParticipantID, request model.SubscriptionRequestPayload, sender Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[to] = append(m.queued[to], pendingRequest{from: from, request: request, sender: sender})
	logger.Infof("queued subscription %s for not-yet-registered provider %s", request.SubscriptionID, to)
}

// AddInstalled installs a subscription request immediately against an
// already-registered provider (spec.md §4.5, ingress path 2).
func (m *Manager) AddInstalled(from, to model.ParticipantID, caller requestcallers.RequestCaller, request model.SubscriptionRequestPayload, sender Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installLocked(from, to, caller, request, sender)
}

func (m *Manager) installLocked(from, to model.ParticipantID, caller requestcallers.RequestCaller, request model.SubscriptionRequestPayload, sender Sender) {
	a := &active{from: from, to: to, caller: caller, sender: sender, qos: request.Qos}
	m.active[request.SubscriptionID] = a
	owners, ok := m.byOwner[to]
	if !ok {
		owners = make(map[model.SubscriptionID]struct{})
		m.byOwner[to] = owners
	}
	owners[request.SubscriptionID] = struct{}{}

	if request.Qos.MaxIntervalMs > 0 {
		period := time.Duration(request.Qos.MaxIntervalMs) * time.Millisecond
		id := request.SubscriptionID
		a.nextEmitHandle = m.timers.Every(period, func() { m.emitPeriodic(id) })
	}
}

// Restore drains any queued subscription requests targeting
// participantID and installs each one, called by the dispatcher right
// after a new request caller is added to C2 (spec.md §4.5). Holding
// this under the dispatcher's subscriptionHandlingMutex in concert
// with addRequestCaller is what prevents the queued-vs-installed race
// described in spec.md §4.6.
func (m *Manager) Restore(participantID model.ParticipantID, caller requestcallers.RequestCaller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.queued[participantID]
	delete(m.queued, participantID)
	for _, p := range pending {
		m.installLocked(p.from, participantID, caller, p.request, p.sender)
	}
	if len(pending) > 0 {
		logger.Infof("restored %d queued subscription(s) for %s", len(pending), participantID)
	}
}

// StopPublication cancels timers and removes subscription state for
// id (spec.md §4.5). No-op if id is unknown.
func (m *Manager) StopPublication(id model.SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(id)
}

func (m *Manager) stopLocked(id model.SubscriptionID) {
	a, ok := m.active[id]
	if !ok {
		return
	}
	m.timers.Cancel(a.nextEmitHandle)
	delete(m.active, id)
	if owners, ok := m.byOwner[a.to]; ok {
		delete(owners, id)
		if len(owners) == 0 {
			delete(m.byOwner, a.to)
		}
	}
}

// RemoveAllSubscriptions purges every subscription (queued or active)
// targeting participantID, called when its provider is removed
// (spec.md §4.5).
func (m *Manager) RemoveAllSubscriptions(participantID model.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queued, participantID)
	owners := m.byOwner[participantID]
	for id := range owners {
		m.stopLocked(id)
	}
}

// PublishValue emits a publication for every active subscription
// targeting provider `to`, skipping any subscription whose last
// published value had the same hash. The qos MinIntervalMs is not
// applied here.
func (m *Manager) PublishValue(to model.ParticipantID, valueHash uint64, build func() model.PublicationPayload) {
	m.mu.Lock()
	owners := m.byOwner[to]
	var targets []*active
	for id := range owners {
		a := m.active[id]
		if a == nil {
			continue
		}
		if a.hasLastValue && a.lastValueHash == valueHash {
			continue
		}
		a.lastValueHash = valueHash
		a.hasLastValue = true
		targets = append(targets, a)
	}
	m.mu.Unlock()

	for _, a := range targets {
		m.sendOne(a, build())
	}
}

// SetValueProvider attaches a getter the periodic (MaxIntervalMs)
// timer uses to re-emit an attribute's current value on a schedule,
// independent of change-triggered PublishValue calls. No-op if id is
// not an active subscription.
func (m *Manager) SetValueProvider(id model.SubscriptionID, provider func() model.PublicationPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.active[id]; ok {
		a.valueProvider = provider
	}
}

func (m *Manager) emitPeriodic(id model.SubscriptionID) {
	m.mu.Lock()
	a, ok := m.active[id]
	m.mu.Unlock()
	if !ok || a.valueProvider == nil {
		return
	}
	m.sendOne(a, a.valueProvider())
}

func (m *Manager) sendOne(a *active, payload model.PublicationPayload) {
	ttl := a.qos.PublicationTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if err := a.sender.SendPublication(a.from, payload, ttl); err != nil {
		logger.Errorf("failed to send publication %s to %s: %v", payload.SubscriptionID, a.from, err)
	}
}

// ActiveCount reports how many subscriptions are currently installed,
// reported at pkg/admin's /status through capabilities.StatusProvider.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// QueuedCount reports how many subscription requests are parked
// awaiting a provider registration.
func (m *Manager) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.queued {
		n += len(q)
	}
	return n
}
