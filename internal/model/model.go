package model

import (
	"database/sql"
	"time"
)

type Submission struct {
	ID                 int64          `db:"id" json:"id"`
	ActivityStream     string         `db:"activity_stream" json:"activity_stream"`
	SpecificLocation   string         `db:"specific_location" json:"specific_location"`
	CommunityGroupType string         `db:"community_group_type" json:"community_group_type"`
	ParticipantCount   int            `db:"participant_count" json:"participant_count"`
	KeyIssues          string         `db:"key_issues" json:"key_issues"`
	Status             Status         `db:"status" json:"status"`
	SubmittedBy        string         `db:"submitted_by" json:"submitted_by"`
	SubmittedAt        time.Time      `db:"submitted_at" json:"submitted_at"`
	ReviewedBy         sql.NullString `db:"reviewed_by" json:"-"`
	ReviewedAt         sql.NullTime   `db:"reviewed_at" json:"-"`
	ReviewNotes        sql.NullString `db:"review_notes" json:"-"`
	SyncStatus         string         `db:"sync_status" json:"sync_status"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

type Participant struct {
	ID           int64     `db:"id" json:"id"`
	SubmissionID int64     `db:"submission_id" json:"submission_id"`
	Name         string    `db:"name" json:"name"`
	Age          int       `db:"age" json:"age"`
	PhoneNumber  string    `db:"phone_number" json:"phone_number"`
	Gender       string    `db:"gender" json:"gender"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type SubmissionPhoto struct {
	ID           int64     `db:"id" json:"id"`
	SubmissionID int64     `db:"submission_id" json:"submission_id"`
	URL          string    `db:"url" json:"url"`
	PublicID     string    `db:"public_id" json:"public_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
