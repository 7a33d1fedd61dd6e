// Package harvest ranks beaches by harvest opportunity and assembles the
// multi-day harvest calendar, combining the biotoxin status layer with the
// tide prediction layer.
package harvest

import (
	"time"

	"shellcast/internal/types"
)

// Score component weights. The scale is additive and uncapped; only relative
// order matters to callers.
const (
	scoreStatusOpen        = 50
	scoreStatusConditional = 25
	scoreSeasonOpen        = 20
	scoreTideExcellent     = 30
	scoreTideGood          = 20
	scoreTideFair          = 10
	scoreTideWithin6h      = 15
	scoreTideWithin12h     = 10
	scoreTideWithin24h     = 5
)

// Score rates one beach's current opportunity: regulatory status dominates,
// then the quality of the nearest upcoming low tide, then how soon it
// arrives. The tide components score the next low regardless of tier, so a
// fair tide tomorrow still outranks no tide at all, and a closed beach
// contributes nothing from the status component but still scores its tides,
// so calendar views can show what a closure is costing.
func Score(status types.BeachStatus, nextLow *types.LowTide, now time.Time) int {
	score := 0

	switch status.Biotoxin {
	case types.StatusOpen:
		score += scoreStatusOpen
	case types.StatusConditional:
		score += scoreStatusConditional
	}
	if status.SeasonOpen {
		score += scoreSeasonOpen
	}

	if nextLow == nil {
		return score
	}

	switch nextLow.Quality {
	case types.QualityExcellent:
		score += scoreTideExcellent
	case types.QualityGood:
		score += scoreTideGood
	case types.QualityFair:
		score += scoreTideFair
	}

	if t, err := time.ParseInLocation(types.TideDatetimeLayout, nextLow.Datetime, now.Location()); err == nil {
		switch hours := t.Sub(now).Hours(); {
		case hours < 0:
			// Already passed; no proximity bonus.
		case hours < 6:
			score += scoreTideWithin6h
		case hours < 12:
			score += scoreTideWithin12h
		case hours < 24:
			score += scoreTideWithin24h
		}
	}

	return score
}

// StatusColor maps a beach status and its nearest upcoming low tide to the
// UI traffic-light color. Green demands both an open classification and a
// good or excellent next low; an open beach with mediocre tides is yellow,
// the same as conditional.
func StatusColor(status types.BeachStatus, nextLow *types.LowTide) types.StatusColor {
	if status.Biotoxin == types.StatusClosed {
		return types.ColorRed
	}

	if status.Biotoxin == types.StatusOpen && nextLow != nil && nextLow.Quality.Harvestable() {
		return types.ColorGreen
	}

	if status.Biotoxin == types.StatusOpen || status.Biotoxin == types.StatusConditional {
		return types.ColorYellow
	}

	return types.ColorGray
}
