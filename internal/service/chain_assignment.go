package service

import "strings"

// ReviewPair is one directed reviewer to reviewee edge of a chain.
type ReviewPair struct {
	ReviewerID string
	RevieweeID string
}

// ShuffleFunc permutes n elements through swap, matching rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// DistinctParticipants trims ids and drops blanks and duplicates, keeping first-seen order.
func DistinctParticipants(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// AssignCircular shuffles the participants and links each one to its successor, wrapping the
// last back to the first. Every participant reviews exactly one peer and is reviewed by exactly one.
func AssignCircular(participants []string, shuffle ShuffleFunc) ([]string, []ReviewPair, error) {
	sequence := DistinctParticipants(participants)
	if len(sequence) < 2 {
		return nil, nil, ErrInsufficientParticipants
	}

	shuffle(len(sequence), func(i, j int) {
		sequence[i], sequence[j] = sequence[j], sequence[i]
	})

	pairs := make([]ReviewPair, 0, len(sequence))
	for i, reviewer := range sequence {
		pairs = append(pairs, ReviewPair{
			ReviewerID: reviewer,
			RevieweeID: sequence[(i+1)%len(sequence)],
		})
	}

	return sequence, pairs, nil
}
