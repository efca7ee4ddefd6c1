package model

import "fmt"

// Status is the closed set of submission lifecycle states. Raw strings from
// storage or requests must go through ParseStatus before use.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown submission status %q", s)
	}
}

func (s Status) String() string {
	return string(s)
}

// IsEditable reports whether content fields, participants and photos of a
// submission may still be mutated. Approved records are locked.
func (s Status) IsEditable() bool {
	switch s {
	case StatusApproved:
		return false
	case StatusDraft, StatusSubmitted, StatusRejected:
		return true
	default:
		return false
	}
}

// CanReview reports whether a review decision (approve or reject) is allowed
// from this state. Only submitted records are reviewable.
func (s Status) CanReview() bool {
	return s == StatusSubmitted
}

// CanResubmit reports whether the record may be sent back into review.
// Rejected records and legacy drafts qualify.
func (s Status) CanResubmit() bool {
	switch s {
	case StatusRejected, StatusDraft:
		return true
	case StatusSubmitted, StatusApproved:
		return false
	default:
		return false
	}
}
