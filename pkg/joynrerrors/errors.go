// Package joynrerrors defines the closed set of error kinds the
// runtime surfaces to callers (spec.md §7): MethodInvocation,
// ProviderRuntime, JoynrRuntime, PublicationMissed, DiscoveryNotFound,
// and Permission. Each is a distinct Go type so call sites can use
// errors.As to branch on kind without string matching.
package joynrerrors

import (
	"fmt"

	"github.com/joynr-go/joynr/pkg/model"
)

// MethodInvocationError is returned by a request interpreter when no
// method overload matches (name, arity, or parameter datatype
// signature).
type MethodInvocationError struct {
	Interface       model.InterfaceName
	ProviderVersion model.Version
	MethodName      string
	Reason          string
}

func (e *MethodInvocationError) Error() string {
	return fmt.Sprintf("no matching method %s.%s (v%d.%d): %s",
		e.Interface, e.MethodName, e.ProviderVersion.Major, e.ProviderVersion.Minor, e.Reason)
}

// ProviderRuntimeError wraps a failure raised by provider code itself
// (spec.md §4.3 "error propagation") or by an access-control denial
// (spec.md §4.7.1).
type ProviderRuntimeError struct {
	Message string
}

func (e *ProviderRuntimeError) Error() string { return "provider runtime error: " + e.Message }

// JoynrRuntimeError is the generic transport/internal error surfaced
// when the runtime itself (not a specific provider) fails, e.g. a
// torn-down runtime or a connector that was never established.
type JoynrRuntimeError struct {
	Message string
}

func (e *JoynrRuntimeError) Error() string { return "joynr runtime error: " + e.Message }

// TTLExpiredError is the distinguished error delivered to a reply
// continuation's on-error path when its TTL elapses before a matching
// reply arrives (spec.md §4.1).
type TTLExpiredError struct {
	RequestReplyID model.RequestReplyID
}

func (e *TTLExpiredError) Error() string {
	return fmt.Sprintf("request %s: ttl expired before a reply arrived", e.RequestReplyID)
}

// PublicationMissedError is raised by a subscription's missed-
// publication alert when a scheduled period boundary passes without a
// publication (spec.md §4.4).
type PublicationMissedError struct {
	SubscriptionID model.SubscriptionID
}

func (e *PublicationMissedError) Error() string {
	return fmt.Sprintf("subscription %s: publication missed", e.SubscriptionID)
}

// DiscoveryNotFoundError is returned when a lookup (by participant id
// or by domain/interface) finds nothing (spec.md §4.7.3, §4.7.4).
type DiscoveryNotFoundError struct {
	Message string
}

func (e *DiscoveryNotFoundError) Error() string { return e.Message }

// PermissionError describes an access-controller denial of a provider
// registration. pkg/capabilities' Directory.Add reports such a denial
// as a ProviderRuntimeError; no code in the runtime returns a
// PermissionError.
type PermissionError struct {
	Domain    model.Domain
	Interface model.InterfaceName
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("registration denied for %s/%s", e.Domain, e.Interface)
}
