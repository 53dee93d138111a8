// Package model defines the wire-level data model shared by the
// dispatcher, the capabilities directory, and their collaborators:
// opaque identifiers, discovery entries, messages, and the small value
// sum type used to decode request parameters.
package model

// ParticipantID addresses a provider or consumer endpoint. It is
// opaque to this package and must be unique across the local
// directory (see Invariants in spec.md §3).
type ParticipantID string

// RequestReplyID correlates a request with its reply. Unique per
// outstanding request.
type RequestReplyID string

// SubscriptionID identifies a subscription across its entire
// lifecycle: request, replies, publications, stop.
type SubscriptionID string

// Domain is the discovery domain a capability is registered under.
type Domain string

// InterfaceName is the Franca-style interface name ("io.joynr.Foo").
type InterfaceName string

// InterfaceAddress is the (domain, interface) pair pending lookups and
// capability queries are keyed by.
type InterfaceAddress struct {
	Domain    Domain
	Interface InterfaceName
}
