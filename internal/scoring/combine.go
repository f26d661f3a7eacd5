package scoring

import (
	"math"

	"github.com/amishk599/jobhound/internal/model"
)

// Combine merges a keyword score (0 when absent) with an AI score using w,
// rounded to two decimals.
func Combine(keyword *float64, ai float64, w model.Weights) float64 {
	var kw float64
	if keyword != nil {
		kw = *keyword
	}
	return math.Round((w.Keyword*kw+w.AI*ai)*100) / 100
}
