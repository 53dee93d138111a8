// Package capabilities implements the local capabilities directory
// (spec.md §4.7, component C7): the two in-memory stores (locally
// registered capabilities, global lookup cache), pending-lookup
// coalescing, the expiry sweep and freshness heartbeat, and
// persistence — the largest component in the runtime.
package capabilities

import (
	"fmt"
	"time"

	"github.com/joynr-go/joynr/pkg/accesscontrol"
	"github.com/joynr-go/joynr/pkg/globaldirectory"
	"github.com/joynr-go/joynr/pkg/joynrerrors"
	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/router"
	"github.com/joynr-go/joynr/pkg/timerservice"
)

var logger = joynrlog.For("capabilities")

// Config parameterizes a Directory.
type Config struct {
	// ClusterControllerID identifies this process to the global
	// directory's touch/heartbeat RPC (spec.md §4.7.6).
	ClusterControllerID string
	// ExpirySweepInterval and HeartbeatInterval drive the two repeating
	// timers of spec.md §4.7.6. Zero disables the corresponding timer.
	ExpirySweepInterval time.Duration
	HeartbeatInterval   time.Duration
	// GlobalCacheCleanupInterval controls how often the global cache's
	// underlying go-cache janitor sweeps (independent of the expiry
	// sweep, which removes by the entries' own Expiry field).
	GlobalCacheCleanupInterval time.Duration
	// DefaultCacheMaxAge bounds staleness for the participant-id lookup
	// overload (spec.md §4.7.3), which takes no explicit DiscoveryQos.
	DefaultCacheMaxAge time.Duration
	// AddressProvider returns this process's own serialized transport
	// address, attached to entries pushed to the global directory so
	// remote callers know where to route requests for them.
	AddressProvider func() []byte
}

// Directory is the local capabilities directory: the locally
// registered capability set, the global lookup cache, and the glue
// between them and the message router / global directory / access
// controller collaborators.
type Directory struct {
	cfg Config

	local   *localStore
	global  *globalCache
	pending *pendingLookups

	router       router.MessageRouter
	globalClient globaldirectory.Client
	access       accesscontrol.Controller
	persistence  Persistence
	timers       *timerservice.Service

	addObservers    []func(model.DiscoveryEntry)
	removeObservers []func(model.ParticipantID)

	expiryHandle    timerservice.Handle
	heartbeatHandle timerservice.Handle
}

// New constructs a Directory and restores any previously persisted
// local registrations (spec.md §4.7.7).
func New(
	cfg Config,
	r router.MessageRouter,
	globalClient globaldirectory.Client,
	access accesscontrol.Controller,
	persistence Persistence,
	timers *timerservice.Service,
) *Directory {
	if persistence == nil {
		persistence = NoopPersistence{}
	}
	if access == nil {
		access = accesscontrol.AllowAll{}
	}

	d := &Directory{
		cfg:         cfg,
		local:       newLocalStore(),
		global:      newGlobalCache(cfg.GlobalCacheCleanupInterval),
		pending:     newPendingLookups(),
		router:      r,
		globalClient: globalClient,
		access:      access,
		persistence: persistence,
		timers:      timers,
	}

	d.restore()

	if cfg.ExpirySweepInterval > 0 {
		d.expiryHandle = timers.Every(cfg.ExpirySweepInterval, d.sweepExpired)
	}
	if cfg.HeartbeatInterval > 0 && globalClient != nil {
		d.heartbeatHandle = timers.Every(cfg.HeartbeatInterval, d.heartbeat)
	}

	return d
}

// OnRegistered registers an observer invoked whenever a provider is
// added (locally or reconciled from a global result).
func (d *Directory) OnRegistered(fn func(model.DiscoveryEntry)) {
	d.addObservers = append(d.addObservers, fn)
}

// OnRemoved registers an observer invoked whenever a provider is
// removed from the local registry.
func (d *Directory) OnRemoved(fn func(model.ParticipantID)) {
	d.removeObservers = append(d.removeObservers, fn)
}

func (d *Directory) notifyAdded(e model.DiscoveryEntry) {
	for _, fn := range d.addObservers {
		fn(e)
	}
}

func (d *Directory) notifyRemoved(id model.ParticipantID) {
	for _, fn := range d.removeObservers {
		fn(id)
	}
}

func (d *Directory) persist() {
	if err := d.persistence.Save(d.local.All()); err != nil {
		logger.Errorf("failed to persist local capabilities: %v", err)
	}
}

func (d *Directory) restore() {
	entries, err := d.persistence.Load()
	if err != nil {
		logger.Errorf("failed to load persisted capabilities: %v", err)
		return
	}
	now := time.Now()
	for _, e := range entries {
		d.local.Insert(e)
		if e.Qos.Scope == model.ScopeGlobal {
			addr := d.cfg.AddressProvider
			var addrBytes []byte
			if addr != nil {
				addrBytes = addr()
			}
			d.global.Insert(model.GlobalDiscoveryEntry{DiscoveryEntry: e, Address: addrBytes}, now)
		}
	}
}

// Add implements spec.md §4.7.1.
func (d *Directory) Add(entry model.DiscoveryEntry, awaitGlobalRegistration bool, onSuccess func(), onError func(error)) {
	if !d.access.HasProviderPermission(entry.ParticipantID, accesscontrol.TrustHigh, entry.Domain, entry.Interface) {
		onError(&joynrerrors.ProviderRuntimeError{
			Message: fmt.Sprintf("registration denied for %s/%s", entry.Domain, entry.Interface),
		})
		return
	}

	isGlobal := entry.Qos.Scope == model.ScopeGlobal

	installLocal := func() {
		d.local.Insert(entry)
		if isGlobal {
			var addrBytes []byte
			if d.cfg.AddressProvider != nil {
				addrBytes = d.cfg.AddressProvider()
			}
			d.global.Insert(model.GlobalDiscoveryEntry{DiscoveryEntry: entry, Address: addrBytes}, time.Now())
		}
		d.notifyAdded(entry)
		d.persist()
		d.pending.DrainLocal(model.InterfaceAddress{Domain: entry.Domain, Interface: entry.Interface}, entry)
	}

	if !isGlobal || !awaitGlobalRegistration {
		installLocal()
	}

	if !isGlobal {
		onSuccess()
		return
	}

	if d.globalClient == nil {
		logger.Errorf("provider %s is scope GLOBAL but no global directory client is configured", entry.ParticipantID)
		if awaitGlobalRegistration {
			onError(&joynrerrors.JoynrRuntimeError{Message: "no global capabilities directory client configured"})
			return
		}
		onSuccess()
		return
	}

	var addrBytes []byte
	if d.cfg.AddressProvider != nil {
		addrBytes = d.cfg.AddressProvider()
	}
	globalEntry := model.GlobalDiscoveryEntry{DiscoveryEntry: entry, Address: addrBytes}

	if !awaitGlobalRegistration {
		onSuccess()
		d.globalClient.Add(globalEntry, func() {}, func(err error) {
			logger.Warnf("global registration of %s failed (not awaited): %v", entry.ParticipantID, err)
		})
		return
	}

	d.globalClient.Add(globalEntry,
		func() {
			installLocal()
			onSuccess()
		},
		func(err error) {
			onError(err)
		},
	)
}

// Remove implements spec.md §4.7.2.
func (d *Directory) Remove(participantID model.ParticipantID, removeGlobally, removeFromGlobalLookupCache bool) error {
	entry, ok := d.local.Remove(participantID)
	if !ok {
		logger.Infof("remove(%s): not locally registered", participantID)
		return nil
	}

	isGlobal := entry.Qos.Scope == model.ScopeGlobal
	if isGlobal && removeFromGlobalLookupCache {
		d.global.Remove(participantID)
	}
	if isGlobal && removeGlobally && d.globalClient != nil {
		d.globalClient.Remove(participantID)
	}

	d.notifyRemoved(participantID)
	if d.router != nil {
		d.router.RemoveNextHop(participantID)
	}
	d.persist()
	return nil
}

// Lookup implements spec.md §4.7.3: single-participant lookup, always
// LOCAL_THEN_GLOBAL.
func (d *Directory) Lookup(participantID model.ParticipantID, useGlobalCapabilitiesDirectory bool, callback func(model.ResolvedEntry, error)) {
	if e, ok := d.local.Get(participantID); ok {
		callback(model.ResolvedEntry{DiscoveryEntry: e, IsLocal: true}, nil)
		return
	}

	if e, ok := d.global.Get(participantID, d.cfg.DefaultCacheMaxAge, time.Now()); ok {
		callback(model.ResolvedEntry{DiscoveryEntry: e.DiscoveryEntry, IsLocal: false}, nil)
		return
	}

	if !useGlobalCapabilitiesDirectory {
		callback(model.ResolvedEntry{}, &joynrerrors.DiscoveryNotFoundError{Message: "no local capabilities found"})
		return
	}

	if d.globalClient == nil {
		callback(model.ResolvedEntry{}, &joynrerrors.DiscoveryNotFoundError{
			Message: fmt.Sprintf("no capabilities found for %s", participantID),
		})
		return
	}

	d.globalClient.Lookup(participantID,
		func(global model.GlobalDiscoveryEntry) {
			if local, ok := d.local.Get(participantID); ok {
				callback(model.ResolvedEntry{DiscoveryEntry: local, IsLocal: true}, nil)
				return
			}
			d.global.Insert(global, time.Now())
			d.notifyAdded(global.DiscoveryEntry)
			callback(model.ResolvedEntry{DiscoveryEntry: global.DiscoveryEntry, IsLocal: false}, nil)
		},
		func(error) {
			callback(model.ResolvedEntry{}, &joynrerrors.DiscoveryNotFoundError{
				Message: fmt.Sprintf("no capabilities found for %s", participantID),
			})
		},
	)
}

func dedupe(locals []model.DiscoveryEntry, globals []model.GlobalDiscoveryEntry) []model.ResolvedEntry {
	byID := make(map[model.ParticipantID]model.ResolvedEntry, len(locals)+len(globals))
	for _, g := range globals {
		byID[g.ParticipantID] = model.ResolvedEntry{DiscoveryEntry: g.DiscoveryEntry, IsLocal: false}
	}
	for _, l := range locals {
		byID[l.ParticipantID] = model.ResolvedEntry{DiscoveryEntry: l, IsLocal: true}
	}
	out := make([]model.ResolvedEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	return out
}

// LookupByDomain implements spec.md §4.7.4.
func (d *Directory) LookupByDomain(domains []model.Domain, iface model.InterfaceName, qos model.DiscoveryQos, callback func([]model.ResolvedEntry, error)) {
	if len(domains) != 1 {
		callback(nil, &joynrerrors.ProviderRuntimeError{Message: "multi-domain not supported"})
		return
	}
	addr := model.InterfaceAddress{Domain: domains[0], Interface: iface}
	now := time.Now()

	local := d.local.ByAddress(addr)
	cachedGlobal := d.global.ByAddress(addr, qos.CacheMaxAge, now)

	switch qos.DiscoveryScope {
	case model.LocalOnly:
		out := make([]model.ResolvedEntry, 0, len(local))
		for _, e := range local {
			out = append(out, model.ResolvedEntry{DiscoveryEntry: e, IsLocal: true})
		}
		callback(out, nil)

	case model.GlobalOnly:
		var globalScoped []model.DiscoveryEntry
		for _, e := range local {
			if e.Qos.Scope == model.ScopeGlobal {
				globalScoped = append(globalScoped, e)
			}
		}
		callback(dedupe(globalScoped, cachedGlobal), nil)

	case model.LocalAndGlobal:
		if len(cachedGlobal) > 0 {
			callback(dedupe(local, cachedGlobal), nil)
			return
		}
		d.issueGlobalLookupByDomain(addr, domains, iface, qos, callback)

	default: // LocalThenGlobal, and the implicit default
		if len(local) > 0 {
			out := make([]model.ResolvedEntry, 0, len(local))
			for _, e := range local {
				out = append(out, model.ResolvedEntry{DiscoveryEntry: e, IsLocal: true})
			}
			callback(out, nil)
			return
		}
		if len(cachedGlobal) > 0 {
			out := make([]model.ResolvedEntry, 0, len(cachedGlobal))
			for _, e := range cachedGlobal {
				out = append(out, model.ResolvedEntry{DiscoveryEntry: e.DiscoveryEntry, IsLocal: false})
			}
			callback(out, nil)
			return
		}
		d.issueGlobalLookupByDomain(addr, domains, iface, qos, callback)
	}
}

func (d *Directory) issueGlobalLookupByDomain(addr model.InterfaceAddress, domains []model.Domain, iface model.InterfaceName, qos model.DiscoveryQos, callback func([]model.ResolvedEntry, error)) {
	if d.globalClient == nil {
		callback(nil, &joynrerrors.DiscoveryNotFoundError{Message: fmt.Sprintf("no capabilities found for %s/%s", domains[0], iface)})
		return
	}

	id := d.pending.Register(addr, func(single model.ResolvedEntry, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		callback([]model.ResolvedEntry{single}, nil)
	})

	timeout := qos.DiscoveryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	d.globalClient.LookupByDomain(domains, iface, timeout,
		func(entries []model.GlobalDiscoveryEntry) {
			if !d.pending.Resolve(addr, id) {
				return
			}
			now := time.Now()
			for _, e := range entries {
				d.global.Insert(e, now)
			}
			local := d.local.ByAddress(addr)
			merged := dedupe(local, entries)
			if len(entries) > 1 {
				logger.Infof("lookup(%s/%s): global directory returned %d entries, delivering all after dedup", domains[0], iface, len(entries))
			}
			callback(merged, nil)
		},
		func(err error) {
			if !d.pending.Resolve(addr, id) {
				return
			}
			callback(nil, err)
		},
	)
}

// ReceiveCapabilities implements spec.md §4.7.8: installs next-hops
// and caches entries learned from a global lookup response received
// over the wire (as opposed to one this process itself issued).
func (d *Directory) ReceiveCapabilities(entries []model.GlobalDiscoveryEntry) {
	now := time.Now()
	for _, e := range entries {
		if len(e.Address) == 0 {
			logger.Warnf("received capability %s with no transport address, skipping", e.ParticipantID)
			continue
		}
		if d.router != nil {
			d.router.AddNextHop(e.ParticipantID, e.Address, e.Qos.Scope == model.ScopeGlobal, 0, false)
		}
		d.global.Insert(e, now)
	}
}

// TriggerGlobalProviderReregistration implements spec.md §4.7.9.
func (d *Directory) TriggerGlobalProviderReregistration(onSuccess func()) {
	if d.globalClient != nil {
		for _, e := range d.local.All() {
			if e.Qos.Scope != model.ScopeGlobal {
				continue
			}
			var addrBytes []byte
			if d.cfg.AddressProvider != nil {
				addrBytes = d.cfg.AddressProvider()
			}
			d.globalClient.Add(model.GlobalDiscoveryEntry{DiscoveryEntry: e, Address: addrBytes}, func() {}, func(error) {})
		}
	}
	onSuccess()
}

// Counts returns the number of locally registered and cached-global
// entries, for diagnostics (pkg/admin's /status).
func (d *Directory) Counts() (local int, cachedGlobal int) {
	return len(d.local.All()), len(d.global.cache.Items())
}

// Shutdown cancels the expiry sweep and heartbeat timers. Per
// spec.md §4.7.6, cancelling an already-fired or unknown timer is not
// an error.
func (d *Directory) Shutdown() {
	d.timers.Cancel(d.expiryHandle)
	d.timers.Cancel(d.heartbeatHandle)
}
