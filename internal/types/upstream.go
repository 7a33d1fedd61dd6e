package types

import "strings"

// Biotoxin-relevant closure status codes observed in the DOH closure-zone
// feed. The meaning of other codes (plain-open, generic-conditional) is not
// verified against authoritative documentation; this is an external contract
// snapshot, not a guaranteed stable enum.
const (
	ClosureCodeBiotoxin         = 1
	ClosureCodeBiotoxinAdvisory = 12
)

// ClosureRecord is an ephemeral record from the closure-zone feed. Zones
// are identified only by free-text name, which is why downstream matching
// is fuzzy.
type ClosureRecord struct {
	// ZoneNameRaw is the case-folded free-text zone name.
	ZoneNameRaw string
	// SpeciesAffectedRaw is free text; empty means all species.
	SpeciesAffectedRaw string
	// StatusCode is the upstream closure code; only biotoxin-class codes
	// are retained by the reconciler.
	StatusCode int
}

// IsAllSpecies reports whether the record restricts every species.
func (r ClosureRecord) IsAllSpecies() bool {
	folded := strings.ToLower(strings.TrimSpace(r.SpeciesAffectedRaw))
	return folded == "" || strings.Contains(folded, "all")
}

// IsBiotoxin reports whether the record's status code is biotoxin-class.
func (r ClosureRecord) IsBiotoxin() bool {
	return r.StatusCode == ClosureCodeBiotoxin || r.StatusCode == ClosureCodeBiotoxinAdvisory
}

// ClassificationRecord is an ephemeral record from the per-location
// classification feed, keyed by the external id that beaches derive from
// their DOH reference URL.
type ClassificationRecord struct {
	ExternalID     string
	FinalStatusRaw string
	ReasonText     string
}

// Status maps the record's free-text status onto the internal enum.
func (r ClassificationRecord) Status() BiotoxinStatus {
	return ParseBiotoxinStatus(r.FinalStatusRaw)
}
