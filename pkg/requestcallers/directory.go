// Package requestcallers implements C2, the request caller directory
// of spec.md §4.2: a mapping from participant id to the installed
// provider callable, protected by exclusive mutation.
//
// Grounded on controller/destination/endpoints_watcher.go's
// servicePorts map: a plain map guarded by a mutex that only protects
// the map structure itself, not whatever the values point to.
package requestcallers

import (
	"sync"

	"github.com/joynr-go/joynr/pkg/model"
)

// RequestCaller is the installed provider-side callable for one
// participant id: given a decoded request, an interpreter resolves
// and invokes the matching method on it (pkg/interpreter).
type RequestCaller interface {
	// InterfaceName is used by the dispatcher to look up the
	// matching interpreter in the registrar (spec.md §4.6).
	InterfaceName() model.InterfaceName
	ProviderVersion() model.Version
}

// Directory is C2. The zero value is ready to use.
type Directory struct {
	mu      sync.RWMutex // protects callers itself, not the RequestCaller values
	callers map[model.ParticipantID]RequestCaller
}

// New constructs an empty request caller directory.
func New() *Directory {
	return &Directory{callers: make(map[model.ParticipantID]RequestCaller)}
}

// Add installs (or replaces) the caller for participantID.
func (d *Directory) Add(participantID model.ParticipantID, caller RequestCaller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callers[participantID] = caller
}

// Remove uninstalls the caller for participantID, if any.
func (d *Directory) Remove(participantID model.ParticipantID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.callers, participantID)
}

// Lookup returns the installed caller for participantID, if any.
func (d *Directory) Lookup(participantID model.ParticipantID) (RequestCaller, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.callers[participantID]
	return c, ok
}
