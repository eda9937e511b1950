package gap

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gapnav/localplanner/utils"
)

// Scoring rewards wide gaps, boosting those pointing toward the goal.
type Scoring struct {
	// Slew is how fast the goal boost decays with angular distance from the goal, per radian.
	Slew float64
	// Expansion is the largest boost, as a fraction of the gap's width.
	Expansion float64
}

// Score is width + width*Expansion*exp(-Slew*|mid - goal|), angles in radians.
func (s Scoring) Score(geom Geometry, goalBearing float64) float64 {
	offset := utils.DegToRad(math.Abs(geom.MidBearing - goalBearing))
	return geom.Width + geom.Width*s.Expansion*math.Exp(-s.Slew*offset)
}

// Select scores every gap and returns the index of the best one along with all scores. Ties
// go to the earliest gap, which is the leftmost. An empty input selects -1.
func (s Scoring) Select(geoms []Geometry, goalBearing float64) (int, []float64) {
	if len(geoms) == 0 {
		return -1, nil
	}
	scores := make([]float64, len(geoms))
	for i, geom := range geoms {
		scores[i] = s.Score(geom, goalBearing)
	}
	return floats.MaxIdx(scores), scores
}
