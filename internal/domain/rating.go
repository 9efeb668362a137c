package domain

import "math"

const (
	MinRating  = 0.5
	MaxRating  = 10.0
	RatingStep = 0.5
)

// ValidateRating checks that v lies in [MinRating, MaxRating] on a
// RatingStep grid.
func ValidateRating(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Errorf(ErrInvalidInput, "rating must be a number")
	}
	if v < MinRating || v > MaxRating {
		return Errorf(ErrInvalidInput, "rating must be between %.1f and %.1f", MinRating, MaxRating)
	}
	if steps := v / RatingStep; steps != math.Trunc(steps) {
		return Errorf(ErrInvalidInput, "rating must be a multiple of %.1f", RatingStep)
	}
	return nil
}

// Aggregate returns the plain arithmetic mean and count of ratings.
// An empty input yields the zero summary.
func Aggregate(ratings []float64) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return RatingSummary{
		Average: sum / float64(len(ratings)),
		Count:   int64(len(ratings)),
	}
}

// RoundToOneDecimal is used for display of averages.
func RoundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
