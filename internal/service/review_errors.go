package service

import "errors"

var (
	// ErrInsufficientParticipants indicates fewer than two distinct participants were supplied.
	ErrInsufficientParticipants = errors.New("at least two distinct participants are required")
	// ErrDuplicateChain indicates a chain already exists for the activity.
	ErrDuplicateChain = errors.New("review chain already exists for activity")
	// ErrChainNotFound indicates no chain matched the lookup.
	ErrChainNotFound = errors.New("review chain not found")
	// ErrObligationNotFound indicates no unsubmitted obligation matches the reviewer/reviewee pairing.
	ErrObligationNotFound = errors.New("review obligation not found")
	// ErrInvalidRating indicates the rating is outside the review vocabulary.
	ErrInvalidRating = errors.New("invalid rating")
	// ErrCommentTooLong indicates the comment exceeds the configured maximum length.
	ErrCommentTooLong = errors.New("comment too long")
	// ErrChainExpired indicates the review window closed before the submission.
	ErrChainExpired = errors.New("review window has closed")
	// ErrChainNotYetActive indicates the chain's trigger time has not been reached.
	ErrChainNotYetActive = errors.New("review window has not opened yet")
)
