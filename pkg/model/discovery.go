package model

import "time"

// Version is a provider's (major, minor) interface version.
type Version struct {
	Major int
	Minor int
}

// DiscoveryEntry advertises a provider: who, where (domain/interface),
// what interface version, and the validity window of the
// advertisement. See spec.md §3.
type DiscoveryEntry struct {
	ProviderVersion Version         `json:"providerVersion"`
	Domain          Domain          `json:"domain"`
	Interface       InterfaceName   `json:"interfaceName"`
	ParticipantID   ParticipantID   `json:"participantId"`
	Qos             ProviderQos     `json:"qos"`
	LastSeen        time.Time       `json:"lastSeen"`
	Expiry          time.Time       `json:"expiryDate"`
	PublicKeyID     string          `json:"publicKeyId"`
}

// Expired reports whether the entry's expiry has passed as of now.
func (e DiscoveryEntry) Expired(now time.Time) bool {
	return e.Expiry.Before(now)
}

// GlobalDiscoveryEntry is a DiscoveryEntry additionally carrying the
// serialized transport address needed to route to a remote
// participant (spec.md §3).
type GlobalDiscoveryEntry struct {
	DiscoveryEntry
	Address []byte `json:"address"`
}

// ResolvedEntry is a DiscoveryEntry annotated with whether it was
// served from the local registry (true) or the global lookup cache
// (false). Lookups that merge local and global results use IsLocal to
// break ties (spec.md §4.7.4 deduplication rule).
type ResolvedEntry struct {
	DiscoveryEntry
	IsLocal bool
}
