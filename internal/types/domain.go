// Package types defines the shared domain model for the ShellCast platform:
// beaches, tide predictions, biotoxin status records, and the harvest
// calendar structures derived from them. It has no dependencies on other
// internal packages so that every layer can consume it freely.
package types

import (
	"strings"
	"time"
)

// BiotoxinStatus is the authoritative harvest status of a beach, owned by
// the biotoxin reconciler and overwritten wholesale on every refresh cycle.
type BiotoxinStatus string

const (
	StatusOpen         BiotoxinStatus = "open"
	StatusClosed       BiotoxinStatus = "closed"
	StatusConditional  BiotoxinStatus = "conditional"
	StatusUnclassified BiotoxinStatus = "unclassified"
)

// Restrictiveness orders statuses for most-restrictive-wins merging when the
// upstream classification feed returns multiple records for one location.
// Closed beats everything; an unknown string ranks below open so that junk
// upstream values can never mask a real record.
func (s BiotoxinStatus) Restrictiveness() int {
	switch s {
	case StatusClosed:
		return 4
	case StatusUnclassified:
		return 3
	case StatusConditional:
		return 2
	case StatusOpen:
		return 1
	default:
		return 0
	}
}

// ParseBiotoxinStatus maps free-text upstream status strings onto the
// internal enum by substring match. Upstream spellings vary ("CLOSED",
// "Closed - Biotoxin", "Open with conditions"), so exact comparison is not
// an option. Unrecognized text maps to unclassified.
func ParseBiotoxinStatus(raw string) BiotoxinStatus {
	folded := strings.ToLower(raw)
	switch {
	case strings.Contains(folded, "closed"):
		return StatusClosed
	case strings.Contains(folded, "conditional"):
		return StatusConditional
	case strings.Contains(folded, "open"):
		return StatusOpen
	default:
		return StatusUnclassified
	}
}

// TideQuality tiers a low-tide event by how much beach it exposes.
type TideQuality string

const (
	QualityExcellent TideQuality = "excellent"
	QualityGood      TideQuality = "good"
	QualityFair      TideQuality = "fair"
	QualityPoor      TideQuality = "poor"
)

// Harvestable reports whether a low tide of this quality is worth a trip.
func (q TideQuality) Harvestable() bool {
	return q == QualityGood || q == QualityExcellent
}

// TideEventType distinguishes hi-lo prediction events.
type TideEventType string

const (
	TideLow  TideEventType = "low"
	TideHigh TideEventType = "high"
)

// Abundance rates how plentiful a species is at a beach.
type Abundance string

const (
	AbundancePoor      Abundance = "poor"
	AbundanceModerate  Abundance = "moderate"
	AbundanceGood      Abundance = "good"
	AbundanceExcellent Abundance = "excellent"
)

// AccessType describes how a beach is reached.
type AccessType string

const (
	AccessPublic AccessType = "public"
	AccessBoat   AccessType = "boat"
)

// Species is a harvestable species profile at a specific beach. MinTideFt is
// the maximum tide height at which the species is practically diggable.
type Species struct {
	Name      string    `json:"name"`
	Abundance Abundance `json:"abundance"`
	MinTideFt float64   `json:"min_tide_ft"`
}

// Beach is a static registry entry for a harvesting location. Registry
// content is provisioned out of band and never mutated at runtime.
type Beach struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Region        string     `json:"region"`
	County        string     `json:"county"`
	Lat           float64    `json:"lat"`
	Lon           float64    `json:"lon"`
	AccessType    AccessType `json:"access_type"`
	Species       []Species  `json:"species"`
	TideStationID string     `json:"tide_station_id"`
	// DOHRefURL points at the WA DOH beach page; its trailing numeric path
	// segment is the external id used against the classification feed.
	DOHRefURL string `json:"doh_ref_url,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ExternalID extracts the classification-feed lookup key from the DOH
// reference URL: the trailing numeric path segment. Returns "" when the
// beach has no usable reference.
func (b Beach) ExternalID() string {
	if b.DOHRefURL == "" {
		return ""
	}
	trimmed := strings.TrimRight(b.DOHRefURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	seg := trimmed[idx+1:]
	for _, r := range seg {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if seg == "" {
		return ""
	}
	return seg
}

// BeachStatus is the dynamic status record for a beach. The reconciler
// overwrites it wholesale each cycle; absence of a record reads as
// unclassified. Field-level merging is deliberately not supported.
type BeachStatus struct {
	BeachID         int            `json:"beach_id"`
	Biotoxin        BiotoxinStatus `json:"biotoxin_status"`
	ClosureReason   string         `json:"closure_reason,omitempty"`
	SpeciesAffected string         `json:"species_affected,omitempty"`
	SeasonInfo      string         `json:"season_info,omitempty"`
	SeasonOpen      bool           `json:"season_open"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// DefaultStatus is the status assumed for a beach with no persisted record.
func DefaultStatus(beachID int) BeachStatus {
	return BeachStatus{
		BeachID:    beachID,
		Biotoxin:   StatusUnclassified,
		SeasonOpen: true,
	}
}

// BeachWithStatus is a registry entry joined with its current status.
type BeachWithStatus struct {
	Beach
	Status BeachStatus `json:"status"`
}

// TidePrediction is one hi-lo event for a station. Datetime is local civil
// time at the station in "2006-01-02 15:04" form, which sorts correctly as
// a plain string; the cache keys on (StationID, Datetime).
type TidePrediction struct {
	StationID string        `json:"station_id"`
	Datetime  string        `json:"datetime"`
	HeightFt  float64       `json:"height_ft"`
	Type      TideEventType `json:"type"`
}

// TideDatetimeLayout is the layout of TidePrediction.Datetime.
const TideDatetimeLayout = "2006-01-02 15:04"

// Time parses the prediction's civil datetime in the given location.
func (p TidePrediction) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TideDatetimeLayout, p.Datetime, loc)
}

// LowTide is a low-tide event with its derived quality tier. IsExtended
// marks a tide found beyond the originally requested window by the
// next-good-tide extension search.
type LowTide struct {
	Datetime   string      `json:"datetime"`
	HeightFt   float64     `json:"height_ft"`
	Quality    TideQuality `json:"quality"`
	IsExtended bool        `json:"is_extended,omitempty"`
}

// StatusColor is the UI traffic-light color for a beach.
type StatusColor string

const (
	ColorGreen  StatusColor = "green"
	ColorYellow StatusColor = "yellow"
	ColorRed    StatusColor = "red"
	ColorGray   StatusColor = "gray"
)

// CalendarEntry is one beach/low-tide pairing inside a harvest calendar day.
type CalendarEntry struct {
	BeachID        int            `json:"beach_id"`
	Name           string         `json:"name"`
	Region         string         `json:"region"`
	TideStationID  string         `json:"tide_station_id"`
	TideTime       string         `json:"tide_time"`
	TideHeightFt   float64        `json:"tide_height_ft"`
	TideQuality    TideQuality    `json:"tide_quality"`
	BiotoxinStatus BiotoxinStatus `json:"biotoxin_status"`
	IsClosed       bool           `json:"is_closed"`
}

// HarvestDay is one date bucket of the harvest calendar. Entries are sorted
// by tide height ascending (lower exposes more beach) and truncated to the
// compact top-N for calendar display; the full qualifying set is available
// through the detail variant.
type HarvestDay struct {
	Date      string          `json:"date"`
	DayOfWeek string          `json:"day_of_week"`
	Entries   []CalendarEntry `json:"entries"`
}

// RefreshSummary reports the outcome of a biotoxin refresh cycle. The counts
// always sum to the registry size: every beach is written every cycle.
type RefreshSummary struct {
	Updated      int       `json:"updated"`
	Open         int       `json:"open"`
	Closed       int       `json:"closed"`
	Conditional  int       `json:"conditional"`
	Unclassified int       `json:"unclassified"`
	Timestamp    time.Time `json:"timestamp"`
}

// TideRefreshSummary reports the outcome of a tide refresh sweep.
type TideRefreshSummary struct {
	StationsUpdated int       `json:"stations_updated"`
	StationsFailed  int       `json:"stations_failed"`
	Timestamp       time.Time `json:"timestamp"`
}
