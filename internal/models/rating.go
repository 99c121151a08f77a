package models

import "strings"

// Rating is the closed vocabulary a reviewer may record for a peer.
type Rating string

const (
	// RatingGood marks a positive climbing partner experience.
	RatingGood Rating = "GOOD"
	// RatingBad marks a negative experience.
	RatingBad Rating = "BAD"
	// RatingNoShow marks a partner who did not turn up.
	RatingNoShow Rating = "NO_SHOW"
	// RatingSkip is an explicit abstention and the implied value of a never submitted obligation.
	RatingSkip Rating = "SKIP"
)

// Ratings lists every member of the vocabulary in display order.
func Ratings() []Rating {
	return []Rating{RatingGood, RatingBad, RatingNoShow, RatingSkip}
}

// IsValid reports whether r belongs to the vocabulary.
func (r Rating) IsValid() bool {
	switch r {
	case RatingGood, RatingBad, RatingNoShow, RatingSkip:
		return true
	default:
		return false
	}
}

// ParseRating normalises user input such as "no-show" or "good" into a Rating.
// The second return value is false when the input is outside the vocabulary.
func ParseRating(value string) (Rating, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	rating := Rating(normalized)
	return rating, rating.IsValid()
}
