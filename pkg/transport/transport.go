// Package transport defines the Transport collaborator of spec.md §6:
// the narrow interface the dispatcher sends outbound messages through
// and receives inbound messages from, independent of which concrete
// wire protocol carries the bytes. Three adapters live in
// subpackages: inprocess (direct handoff), grpctransport (gRPC
// bidi-streaming), and wstransport (WebSocket).
package transport

import "github.com/joynr-go/joynr/pkg/model"

// Transport sends and receives wire messages for one peer connection
// or listener.
type Transport interface {
	// Send transmits msg to its Header.To participant.
	Send(msg model.Message) error
	// SetReceiveHandler installs the callback invoked for every
	// inbound message. Must be called before the transport starts
	// accepting traffic.
	SetReceiveHandler(handler func(model.Message))
	// Close tears down the transport's resources (listeners,
	// connections, goroutines).
	Close() error
}
