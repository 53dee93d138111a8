package accesscontrol

import (
	"testing"

	"github.com/joynr-go/joynr/pkg/model"
)

func TestAllowAllAlwaysPermits(t *testing.T) {
	a := AllowAll{}
	if !a.HasProviderPermission("p1", TrustHigh, "d1", "iface1") {
		t.Fatal("AllowAll denied a registration")
	}
}

type denyController struct{}

func (denyController) HasProviderPermission(model.ParticipantID, TrustLevel, model.Domain, model.InterfaceName) bool {
	return false
}

func TestAuditOverridesDenialToPermit(t *testing.T) {
	a := Audit{Delegate: denyController{}}
	if !a.HasProviderPermission("p1", TrustHigh, "d1", "iface1") {
		t.Fatal("Audit mode should permit even when the delegate denies")
	}
}

type allowController struct{}

func (allowController) HasProviderPermission(model.ParticipantID, TrustLevel, model.Domain, model.InterfaceName) bool {
	return true
}

func TestAuditPassesThroughPermit(t *testing.T) {
	a := Audit{Delegate: allowController{}}
	if !a.HasProviderPermission("p1", TrustHigh, "d1", "iface1") {
		t.Fatal("Audit mode should permit when the delegate permits")
	}
}
