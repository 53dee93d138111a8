package capabilities

import (
	"github.com/joynr-go/joynr/pkg/admin"
	"github.com/joynr-go/joynr/pkg/joynrmetrics"
	"github.com/joynr-go/joynr/pkg/publication"
	"github.com/joynr-go/joynr/pkg/subscription"
)

// StatusProvider wires a Directory together with C4/C5's managers to
// satisfy pkg/admin.StatusProvider and to keep pkg/joynrmetrics'
// gauges current.
type StatusProvider struct {
	Dir  *Directory
	Subs *subscription.Manager
	Pubs *publication.Manager
}

// Status implements admin.StatusProvider.
func (s StatusProvider) Status() admin.Status {
	local, cachedGlobal := s.Dir.Counts()
	st := admin.Status{
		LocalCapabilities:  local,
		CachedCapabilities: cachedGlobal,
	}
	if s.Subs != nil {
		st.ActiveSubscriptions = s.Subs.Count()
	}
	if s.Pubs != nil {
		st.ActiveSubscriptions += s.Pubs.ActiveCount()
		st.QueuedSubscriptions = s.Pubs.QueuedCount()
	}
	return st
}

// RefreshGauges pushes the current counts into pkg/joynrmetrics; meant
// to be called periodically from a timer.
func (s StatusProvider) RefreshGauges() {
	local, cachedGlobal := s.Dir.Counts()
	joynrmetrics.LocalCapabilities.Set(float64(local))
	joynrmetrics.CachedCapabilities.Set(float64(cachedGlobal))
}
