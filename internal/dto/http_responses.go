package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"fieldtrack/pkg/pagination"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	SubmissionNotFound  = "SUBMISSION_NOT_FOUND"
	ParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	CapacityReached     = "CAPACITY_REACHED"
	SubmissionLocked    = "SUBMISSION_LOCKED"
	ReviewNotAllowed    = "REVIEW_NOT_ALLOWED"
	Forbidden           = "FORBIDDEN"
	Unauthorized        = "UNAUTHORIZED"
)

type CreateSubmissionRequest struct {
	ActivityStream     string `json:"activity_stream" validate:"required,max=255"`
	SpecificLocation   string `json:"specific_location" validate:"required,max=255"`
	CommunityGroupType string `json:"community_group_type" validate:"required,max=255"`
	ParticipantCount   int    `json:"participant_count" validate:"positive"`
	KeyIssues          string `json:"key_issues"`
	Draft              bool   `json:"draft"`
}

type UpdateSubmissionRequest struct {
	ActivityStream     string `json:"activity_stream" validate:"required,max=255"`
	SpecificLocation   string `json:"specific_location" validate:"required,max=255"`
	CommunityGroupType string `json:"community_group_type" validate:"required,max=255"`
	KeyIssues          string `json:"key_issues"`
}

type AddParticipantRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Age         int    `json:"age" validate:"positive"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	Gender      string `json:"gender" validate:"required,oneof=male female other"`
}

type RejectSubmissionRequest struct {
	Note string `json:"note" validate:"notblank"`
}

type SubmissionResponse struct {
	ID                 int64                 `json:"id"`
	ActivityStream     string                `json:"activity_stream"`
	SpecificLocation   string                `json:"specific_location"`
	CommunityGroupType string                `json:"community_group_type"`
	ParticipantCount   int                   `json:"participant_count"`
	KeyIssues          string                `json:"key_issues"`
	Status             string                `json:"status"`
	SubmittedBy        string                `json:"submitted_by"`
	SubmittedAt        time.Time             `json:"submitted_at"`
	ReviewedBy         *string               `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time            `json:"reviewed_at,omitempty"`
	ReviewNotes        *string               `json:"review_notes,omitempty"`
	SyncStatus         string                `json:"sync_status"`
	TotalParticipants  int                   `json:"total_participants"`
	CanAddMore         bool                  `json:"can_add_more"`
	Editable           bool                  `json:"editable"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	Photos             []PhotoResponse       `json:"photos,omitempty"`
	Participants       []ParticipantResponse `json:"participants,omitempty"`
}

type ParticipantResponse struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	PhoneNumber  string    `json:"phone_number"`
	Gender       string    `json:"gender"`
	CreatedAt    time.Time `json:"created_at"`
}

type ParticipantPageResponse struct {
	Items      []ParticipantResponse `json:"items"`
	Meta       pagination.Meta       `json:"meta"`
	CanAddMore bool                  `json:"can_add_more"`
}

type PhotoResponse struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewReminderMessage is the delayed-queue payload published on submission
// creation and consumed by the reminder worker.
type ReviewReminderMessage struct {
	SubmissionID int64     `json:"submission_id"`
	SubmittedBy  string    `json:"submitted_by"`
	RemindAt     time.Time `json:"remind_at"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func SubmissionNotFoundError(c *ginext.Context) {
	NotFoundError(c, SubmissionNotFound, "Submission not found")
}

func ParticipantNotFoundError(c *ginext.Context) {
	NotFoundError(c, ParticipantNotFound, "Participant not found")
}

func CapacityReachedError(c *ginext.Context) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code: CapacityReached,
			Desc: "Declared participant capacity has been reached",
		},
	})
}

func SubmissionLockedError(c *ginext.Context) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code: SubmissionLocked,
			Desc: "Approved submissions cannot be edited",
		},
	})
}

func ReviewNotAllowedError(c *ginext.Context, desc string) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code: ReviewNotAllowed,
			Desc: desc,
		},
	})
}

func ForbiddenError(c *ginext.Context) {
	c.JSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: Forbidden,
			Desc: "You do not have permission to perform this action",
		},
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.JSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: Unauthorized,
			Desc: "Missing or invalid credentials",
		},
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
