// Package biotoxin implements the closure/classification reconciler: it
// fetches the two DOH feeds, resolves free-text closure zones to beaches,
// and derives one authoritative status per beach each refresh cycle.
package biotoxin

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"shellcast/internal/types"
)

// minFallbackZoneLen guards the substring fallback against false positives
// on short tokens ("bay", "point").
const minFallbackZoneLen = 5

// MatchKind tags how a closure zone was resolved to beaches, making the
// fuzzy-matching heuristic auditable instead of an untyped boolean.
type MatchKind string

const (
	// MatchExactTable means the curated pattern table resolved the zone.
	MatchExactTable MatchKind = "exact_table"
	// MatchSubstringFallback means only the beach-name substring fallback hit.
	MatchSubstringFallback MatchKind = "substring_fallback"
	// MatchNone means the zone resolved to no known beach. Zero matches are
	// a known limitation of name-based zone feeds, not an error; the record
	// is dropped.
	MatchNone MatchKind = "none"
)

// MatchResult is the outcome of resolving one zone name.
type MatchResult struct {
	Kind     MatchKind
	BeachIDs []int
}

// zonePattern is one curated mapping from a zone-name substring to beaches.
// The table is versioned external configuration, not logic: new upstream
// zones without an entry fall through to the substring fallback.
type zonePattern struct {
	Pattern  string `json:"pattern"`
	BeachIDs []int  `json:"beach_ids"`
}

//go:embed zones.json
var zonesJSON []byte

// ZoneMatcher resolves free-text closure zone names to internal beach ids
// using the curated pattern table first, then a substring fallback against
// beach display names.
type ZoneMatcher struct {
	patterns []zonePattern
	beaches  []types.Beach
}

// NewZoneMatcher loads the embedded pattern table for the given registry
// beaches.
func NewZoneMatcher(beaches []types.Beach) (*ZoneMatcher, error) {
	var doc struct {
		Patterns []zonePattern `json:"patterns"`
	}
	if err := json.Unmarshal(zonesJSON, &doc); err != nil {
		return nil, fmt.Errorf("parsing embedded zone table: %w", err)
	}
	return newZoneMatcher(doc.Patterns, beaches), nil
}

// newZoneMatcher builds a matcher from an explicit table, for tests.
func newZoneMatcher(patterns []zonePattern, beaches []types.Beach) *ZoneMatcher {
	folded := make([]zonePattern, len(patterns))
	for i, p := range patterns {
		folded[i] = zonePattern{
			Pattern:  strings.ToLower(strings.TrimSpace(p.Pattern)),
			BeachIDs: p.BeachIDs,
		}
	}
	return &ZoneMatcher{patterns: folded, beaches: beaches}
}

// Match resolves a zone name. Stage one checks the curated table with a
// bidirectional containment test (zone names and table patterns both vary
// in specificity: "potlatch state park" vs table entry "potlatch"). Stage
// two, applied only to names of at least minFallbackZoneLen characters,
// substring-matches against beach display names. The result is the union
// of both stages; Kind records the strongest stage that hit.
func (m *ZoneMatcher) Match(zoneNameRaw string) MatchResult {
	zone := strings.ToLower(strings.TrimSpace(zoneNameRaw))
	if zone == "" {
		return MatchResult{Kind: MatchNone}
	}

	seen := make(map[int]struct{})
	var ids []int
	add := func(id int) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	tableHit := false
	for _, p := range m.patterns {
		if p.Pattern == "" {
			continue
		}
		if strings.Contains(zone, p.Pattern) || strings.Contains(p.Pattern, zone) {
			tableHit = true
			for _, id := range p.BeachIDs {
				add(id)
			}
		}
	}

	fallbackHit := false
	if len(zone) >= minFallbackZoneLen {
		for _, b := range m.beaches {
			name := strings.ToLower(b.Name)
			if strings.Contains(name, zone) || strings.Contains(zone, name) {
				fallbackHit = true
				add(b.ID)
			}
		}
	}

	switch {
	case tableHit:
		return MatchResult{Kind: MatchExactTable, BeachIDs: ids}
	case fallbackHit:
		return MatchResult{Kind: MatchSubstringFallback, BeachIDs: ids}
	default:
		return MatchResult{Kind: MatchNone}
	}
}
