package capabilities

import "time"

// sweepExpired implements the expiry-sweep half of spec.md §4.7.6: on
// every fire, remove expired entries from both stores, drop their
// next-hops, and persist if anything was actually removed.
func (d *Directory) sweepExpired() {
	now := time.Now()

	removedLocal := d.local.RemoveExpired(now)
	removedGlobal := d.global.RemoveExpired(now)

	if len(removedLocal) == 0 && len(removedGlobal) == 0 {
		return
	}

	if d.router != nil {
		for _, e := range removedLocal {
			d.router.RemoveNextHop(e.ParticipantID)
			d.notifyRemoved(e.ParticipantID)
		}
		for _, e := range removedGlobal {
			d.router.RemoveNextHop(e.ParticipantID)
		}
	}

	d.persist()
}

// heartbeat implements the freshness half of spec.md §4.7.6: keep this
// process's globally registered entries alive. Errors log and the
// timer reschedules regardless, per the spec's "both timers
// reschedule on every fire, whether or not the previous fire
// succeeded".
func (d *Directory) heartbeat() {
	d.globalClient.Touch(d.cfg.ClusterControllerID,
		func() {},
		func(err error) {
			logger.Warnf("global directory touch(%s) failed: %v", d.cfg.ClusterControllerID, err)
		},
	)
}
