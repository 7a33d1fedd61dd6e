// Package registry provides the static beach reference list and the tide
// station directory. Registry content is configuration data provisioned out
// of band (embedded at build time); the running service never mutates it.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"shellcast/internal/types"
)

//go:embed beaches.json
var beachesJSON []byte

// Station describes a NOAA tide station referenced by one or more beaches.
type Station struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// stations is the curated NOAA CO-OPS station directory for Puget Sound.
var stations = map[string]Station{
	"9447130": {ID: "9447130", Name: "Seattle", Location: "Central Sound"},
	"9446484": {ID: "9446484", Name: "Tacoma", Location: "South Sound"},
	"9446807": {ID: "9446807", Name: "Union, Hood Canal", Location: "Hood Canal"},
	"9444900": {ID: "9444900", Name: "Port Townsend", Location: "Admiralty Inlet"},
	"9447427": {ID: "9447427", Name: "Stanwood", Location: "North Sound"},
	"9449211": {ID: "9449211", Name: "Blaine", Location: "North Sound"},
	"9444090": {ID: "9444090", Name: "Port Angeles", Location: "Strait of Juan de Fuca"},
	"9446969": {ID: "9446969", Name: "Olympia", Location: "South Sound"},
	"9449880": {ID: "9449880", Name: "Friday Harbor", Location: "San Juan Islands"},
}

// Registry is the read-only beach reference list, loaded once at startup.
type Registry struct {
	beaches []types.Beach
	byID    map[int]types.Beach
}

// New parses the embedded beach data. An unparsable registry is a build
// defect, so the error here is fatal to startup.
func New() (*Registry, error) {
	var doc struct {
		Beaches []types.Beach `json:"beaches"`
	}
	if err := json.Unmarshal(beachesJSON, &doc); err != nil {
		return nil, fmt.Errorf("parsing embedded beach registry: %w", err)
	}
	if len(doc.Beaches) == 0 {
		return nil, fmt.Errorf("embedded beach registry is empty")
	}

	r := &Registry{
		beaches: doc.Beaches,
		byID:    make(map[int]types.Beach, len(doc.Beaches)),
	}
	for _, b := range doc.Beaches {
		if _, dup := r.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate beach id %d in registry", b.ID)
		}
		r.byID[b.ID] = b
	}

	// Stable presentation order: region, then name.
	sort.Slice(r.beaches, func(i, j int) bool {
		if r.beaches[i].Region != r.beaches[j].Region {
			return r.beaches[i].Region < r.beaches[j].Region
		}
		return r.beaches[i].Name < r.beaches[j].Name
	})

	return r, nil
}

// ListBeaches returns all beaches sorted by region then name. The returned
// slice is shared; callers must not modify it.
func (r *Registry) ListBeaches() []types.Beach {
	return r.beaches
}

// GetBeach returns the beach with the given id, or false when unknown.
func (r *Registry) GetBeach(id int) (types.Beach, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// StationIDs returns the distinct tide station ids referenced by the
// registry, sorted for deterministic iteration.
func (r *Registry) StationIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, b := range r.beaches {
		if _, ok := seen[b.TideStationID]; ok {
			continue
		}
		seen[b.TideStationID] = struct{}{}
		ids = append(ids, b.TideStationID)
	}
	sort.Strings(ids)
	return ids
}

// GetStation returns the station directory entry for the given id.
func GetStation(id string) (Station, bool) {
	s, ok := stations[id]
	return s, ok
}

// ListStations returns the full station directory sorted by id.
func ListStations() []Station {
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
