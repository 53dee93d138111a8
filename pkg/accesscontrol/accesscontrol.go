// Package accesscontrol defines the optional access-control collaborator
// of spec.md §6: hasProviderPermission(ownerId, trustLevel, domain,
// interface) -> bool. Policy evaluation itself is explicitly out of
// scope (spec.md §1, "external collaborators"); this package is
// intentionally a thin interface plus a default-permit implementation
// and an audit-mode wrapper, not a policy engine — no example repo in
// the retrieved pack implements ABAC/RBAC policy evaluation, so there
// is nothing in the corpus to ground a richer engine on.
package accesscontrol

import (
	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/model"
)

var logger = joynrlog.For("accesscontrol")

// TrustLevel mirrors the fixed HIGH trust level named in spec.md §6;
// kept as a type in case a future policy source wants to distinguish
// levels.
type TrustLevel int

// TrustHigh is the only trust level spec.md §6 names.
const TrustHigh TrustLevel = 0

// Controller decides whether ownerID may register a provider for
// (domain, interface).
type Controller interface {
	HasProviderPermission(ownerID model.ParticipantID, trustLevel TrustLevel, domain model.Domain, iface model.InterfaceName) bool
}

// AllowAll permits every registration. Used when access control is
// disabled (spec.md §6 `enableAccessController: false`).
type AllowAll struct{}

// HasProviderPermission always returns true.
func (AllowAll) HasProviderPermission(model.ParticipantID, TrustLevel, model.Domain, model.InterfaceName) bool {
	return true
}

// Audit wraps a Controller so that denials are logged but treated as
// permitted, per spec.md §6's "audit-only mode".
type Audit struct {
	Delegate Controller
}

// HasProviderPermission logs (and overrides) any denial from the
// delegate, returning true regardless.
func (a Audit) HasProviderPermission(owner model.ParticipantID, trustLevel TrustLevel, domain model.Domain, iface model.InterfaceName) bool {
	allowed := a.Delegate.HasProviderPermission(owner, trustLevel, domain, iface)
	if !allowed {
		logger.Warnf("audit mode: would deny %s registering %s/%s, permitting anyway", owner, domain, iface)
	}
	return true
}
