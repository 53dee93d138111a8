// Package globaldirectory defines the GlobalCapabilitiesDirectoryClient
// collaborator consumed by C7 (spec.md §6): the narrow interface for
// add/remove/lookup/touch against the global directory service,
// independent of transport.
package globaldirectory

import (
	"time"

	"github.com/joynr-go/joynr/pkg/model"
)

// Client is the global capabilities directory collaborator consumed
// by pkg/capabilities. All methods are asynchronous (callback-style)
// per spec.md §6, matching the original's success/error continuation
// pairs rather than Go's synchronous (value, error) idiom — C7's
// add/lookup logic cares about *which* callback fires, not just
// whether an error occurred, particularly for the
// awaitGlobalRegistration=false paths (spec.md §4.7.1) where a
// failure is logged rather than surfaced.
type Client interface {
	Add(entry model.GlobalDiscoveryEntry, onSuccess func(), onError func(error))
	Remove(participantID model.ParticipantID)
	Lookup(participantID model.ParticipantID, onSuccess func(model.GlobalDiscoveryEntry), onError func(error))
	LookupByDomain(domains []model.Domain, iface model.InterfaceName, timeout time.Duration, onSuccess func([]model.GlobalDiscoveryEntry), onError func(error))
	Touch(clusterControllerID string, onSuccess func(), onError func(error))
}
