package types

import (
	"net/netip"
	"time"
)

// Observation represents one durably recorded address
type Observation struct {
	ID         int64      `json:"id,omitempty"`
	Address    netip.Addr `json:"address"`
	ObservedAt time.Time  `json:"observed_at"`
}

// NewObservation creates an observation stamped with the current UTC time
func NewObservation(addr netip.Addr) Observation {
	return Observation{
		Address:    addr,
		ObservedAt: time.Now().UTC(),
	}
}

// Version returns "ipv4" or "ipv6"
func (o Observation) Version() string {
	if o.Address.Is4() || o.Address.Is4In6() {
		return "ipv4"
	}
	return "ipv6"
}

// FormatTime formats the observation time as RFC3339 in UTC
func (o Observation) FormatTime() string {
	return o.ObservedAt.UTC().Format(time.RFC3339)
}
