package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"fieldtrack/cmd/buildCFG"
	"fieldtrack/cmd/middleware"
	"fieldtrack/internal/dto"
	"fieldtrack/internal/mailer"
	"fieldtrack/internal/model"
	"fieldtrack/internal/rabbit"
	"fieldtrack/internal/repo"
	"fieldtrack/internal/storage"
	"fieldtrack/pkg/pagination"
	"fieldtrack/pkg/validator"
)

const (
	participantPageSize = 5
	submissionPageSize  = 10

	// Creation is bounded so a stalled round-trip cannot hold the client
	// forever; the context aborts the request server-side too.
	createTimeout = 45 * time.Second
)

type Service interface {
	CreateSubmission(ctx *ginext.Context)
	GetSubmission(ctx *ginext.Context)
	ListSubmissions(ctx *ginext.Context)
	UpdateSubmission(ctx *ginext.Context)
	ResubmitSubmission(ctx *ginext.Context)

	AddParticipant(ctx *ginext.Context)
	ListParticipants(ctx *ginext.Context)
	RemoveParticipant(ctx *ginext.Context)

	ApproveSubmission(ctx *ginext.Context)
	RejectSubmission(ctx *ginext.Context)

	UploadPhoto(ctx *ginext.Context)
}

type service struct {
	repo   repo.Repository
	log    *zerolog.Logger
	rbt    *rabbit.Client
	photos storage.PhotoStore
	mail   *buildCFG.MailConfig
	review *buildCFG.ReviewConfig
}

func NewService(repo repo.Repository, logger *zerolog.Logger, rbt *rabbit.Client, photos storage.PhotoStore, mail *buildCFG.MailConfig, review *buildCFG.ReviewConfig) Service {
	return &service{
		repo:   repo,
		log:    logger,
		rbt:    rbt,
		photos: photos,
		mail:   mail,
		review: review,
	}
}

func (s *service) CreateSubmission(ctx *ginext.Context) {
	var req dto.CreateSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create submission request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	status := model.StatusSubmitted
	if req.Draft {
		status = model.StatusDraft
	}

	sub := &model.Submission{
		ActivityStream:     req.ActivityStream,
		SpecificLocation:   req.SpecificLocation,
		CommunityGroupType: req.CommunityGroupType,
		ParticipantCount:   req.ParticipantCount,
		KeyIssues:          req.KeyIssues,
		Status:             status,
		SubmittedBy:        ctx.GetString(middleware.CtxUserID),
		SyncStatus:         "synced",
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), createTimeout)
	defer cancel()

	id, err := s.repo.CreateSubmission(cctx, sub)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create submission in DB")
		dto.InternalServerError(ctx)
		return
	}
	sub.ID = id
	s.log.Info().Int64("submission_id", id).Str("status", status.String()).Msg("submission created")

	if status == model.StatusSubmitted {
		s.scheduleReviewReminder(sub)
		s.notify("submitted", sub, "")
	}

	created, err := s.repo.GetSubmissionByID(cctx, id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload created submission")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessCreatedResponse(ctx, s.submissionResponse(created, 0, nil))
}

func (s *service) GetSubmission(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to get submission")
		return
	}

	count, err := s.repo.CountParticipants(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count participants")
		dto.InternalServerError(ctx)
		return
	}

	photos, err := s.repo.ListPhotos(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list photos")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, s.submissionResponse(sub, count, photos))
}

func (s *service) ListSubmissions(ctx *ginext.Context) {
	statusFilter := ctx.Query("status")
	if statusFilter != "" {
		if _, err := model.ParseStatus(statusFilter); err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid status filter")
			return
		}
	}

	params := pagination.New(ctx.Query("page"), submissionPageSize)
	subs, total, err := s.repo.ListSubmissions(ctx.Request.Context(), statusFilter, params.Limit(), params.Offset())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list submissions")
		dto.InternalServerError(ctx)
		return
	}

	items := make([]dto.SubmissionResponse, 0, len(subs))
	for i := range subs {
		count, err := s.repo.CountParticipants(ctx.Request.Context(), subs[i].ID)
		if err != nil {
			s.log.Error().Err(err).Int64("submission_id", subs[i].ID).Msg("failed to count participants")
			dto.InternalServerError(ctx)
			return
		}
		items = append(items, s.submissionResponse(&subs[i], count, nil))
	}

	dto.SuccessResponse(ctx, map[string]any{
		"items": items,
		"meta":  pagination.BuildMeta(total, params),
	})
}

func (s *service) UpdateSubmission(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var req dto.UpdateSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to load submission for edit")
		return
	}
	if !s.canModify(ctx, sub) {
		dto.ForbiddenError(ctx)
		return
	}

	sub.ActivityStream = req.ActivityStream
	sub.SpecificLocation = req.SpecificLocation
	sub.CommunityGroupType = req.CommunityGroupType
	sub.KeyIssues = req.KeyIssues

	if err := s.repo.UpdateSubmissionContentTx(ctx.Request.Context(), sub); err != nil {
		s.respondRepoError(ctx, err, "failed to update submission")
		return
	}

	s.reloadAndRespond(ctx, id)
}

func (s *service) ResubmitSubmission(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to load submission for resubmit")
		return
	}
	if !s.canModify(ctx, sub) {
		dto.ForbiddenError(ctx)
		return
	}

	if err := s.repo.ResubmitSubmissionTx(ctx.Request.Context(), id); err != nil {
		s.respondRepoError(ctx, err, "failed to resubmit submission")
		return
	}

	s.log.Info().Int64("submission_id", id).Msg("submission resubmitted for review")

	sub.ID = id
	s.scheduleReviewReminder(sub)
	s.notify("submitted", sub, "")

	s.reloadAndRespond(ctx, id)
}

func (s *service) AddParticipant(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var req dto.AddParticipantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	participant := &model.Participant{
		SubmissionID: id,
		Name:         req.Name,
		Age:          req.Age,
		PhoneNumber:  req.PhoneNumber,
		Gender:       req.Gender,
	}

	pid, total, err := s.repo.AddParticipantTx(ctx.Request.Context(), participant)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to add participant")
		return
	}
	participant.ID = pid

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to reload submission after add")
		return
	}

	s.log.Info().
		Int64("submission_id", id).
		Int64("participant_id", pid).
		Int("total", total).
		Msg("participant added")

	dto.SuccessCreatedResponse(ctx, map[string]any{
		"participant":  participantResponse(participant),
		"total_count":  total,
		"can_add_more": total < sub.ParticipantCount,
	})
}

func (s *service) ListParticipants(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to load submission for listing")
		return
	}

	params := pagination.New(ctx.Query("page"), participantPageSize)
	items, total, err := s.repo.ListParticipantsPage(ctx.Request.Context(), id, params.Limit(), params.Offset())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list participants")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, participantPage(items, total, params, sub.ParticipantCount))
}

func (s *service) RemoveParticipant(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	pid, err := strconv.ParseInt(ctx.Param("pid"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid participant ID")
		return
	}

	if err := s.repo.DeleteParticipantTx(ctx.Request.Context(), id, pid); err != nil {
		s.respondRepoError(ctx, err, "failed to remove participant")
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to reload submission after remove")
		return
	}

	// The page the client was on may no longer exist; clamp to the fresh
	// count and return that page so the view never lands past the end.
	params := pagination.New(ctx.Query("page"), participantPageSize)
	count, err := s.repo.CountParticipants(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to recount participants")
		dto.InternalServerError(ctx)
		return
	}
	params.Page = pagination.Clamp(params.Page, count, params.PageSize)

	items, total, err := s.repo.ListParticipantsPage(ctx.Request.Context(), id, params.Limit(), params.Offset())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to refetch participants page")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Int64("submission_id", id).
		Int64("participant_id", pid).
		Int("total", total).
		Msg("participant removed")

	dto.SuccessResponse(ctx, participantPage(items, total, params, sub.ParticipantCount))
}

func (s *service) ApproveSubmission(ctx *ginext.Context) {
	s.reviewSubmission(ctx, model.StatusApproved, "")
}

func (s *service) RejectSubmission(ctx *ginext.Context) {
	var req dto.RejectSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "A non-empty review note is required to reject")
		return
	}

	s.reviewSubmission(ctx, model.StatusRejected, strings.TrimSpace(req.Note))
}

func (s *service) reviewSubmission(ctx *ginext.Context, decision model.Status, note string) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	reviewerID := ctx.GetString(middleware.CtxUserID)
	if err := s.repo.ReviewSubmissionTx(ctx.Request.Context(), id, reviewerID, decision, note); err != nil {
		s.respondRepoError(ctx, err, "failed to apply review decision")
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to reload reviewed submission")
		return
	}

	s.log.Info().
		Int64("submission_id", id).
		Str("reviewer", reviewerID).
		Str("decision", decision.String()).
		Msg("review decision applied")

	s.notify(decision.String(), sub, note)

	count, err := s.repo.CountParticipants(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count participants")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, s.submissionResponse(sub, count, nil))
}

func (s *service) UploadPhoto(ctx *ginext.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to load submission for photo upload")
		return
	}
	if !s.canModify(ctx, sub) {
		dto.ForbiddenError(ctx)
		return
	}
	if !sub.Status.IsEditable() {
		dto.SubmissionLockedError(ctx)
		return
	}

	file, header, err := ctx.Request.FormFile("photo")
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Missing photo file")
		return
	}
	defer file.Close()

	url, publicID, err := s.photos.Upload(ctx.Request.Context(), file, header)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to upload photo")
		dto.InternalServerError(ctx)
		return
	}

	photo := &model.SubmissionPhoto{
		SubmissionID: id,
		URL:          url,
		PublicID:     publicID,
	}
	photoID, err := s.repo.AddPhoto(ctx.Request.Context(), photo)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to store photo record")
		dto.InternalServerError(ctx)
		return
	}
	photo.ID = photoID

	s.log.Info().Int64("submission_id", id).Int64("photo_id", photoID).Msg("photo uploaded")

	dto.SuccessCreatedResponse(ctx, dto.PhotoResponse{
		ID:        photoID,
		URL:       url,
		CreatedAt: time.Now(),
	})
}

// scheduleReviewReminder publishes a delayed message that resurfaces the
// submission if it is still unreviewed when the delay elapses.
func (s *service) scheduleReviewReminder(sub *model.Submission) {
	if s.rbt == nil || s.review == nil {
		return
	}

	msg := dto.ReviewReminderMessage{
		SubmissionID: sub.ID,
		SubmittedBy:  sub.SubmittedBy,
		RemindAt:     time.Now().Add(s.review.ReminderTimeout),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal reminder message")
		return
	}
	if err := s.rbt.Publish(payload, int(s.review.ReminderTimeout.Seconds())); err != nil {
		s.log.Error().Err(err).Msg("failed to publish reminder message")
	}
}

func (s *service) notify(kind string, sub *model.Submission, note string) {
	if s.mail == nil || s.review == nil {
		return
	}
	if err := mailer.SendSubmissionEmail(
		s.log, s.mail, kind, sub.ID, sub.ActivityStream, sub.SubmittedBy, note, s.review.InboxEmail,
	); err != nil {
		s.log.Warn().Err(err).Msg("failed to send notification e-mail")
	}
}

func (s *service) reloadAndRespond(ctx *ginext.Context, id int64) {
	sub, err := s.repo.GetSubmissionByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondRepoError(ctx, err, "failed to reload submission")
		return
	}
	count, err := s.repo.CountParticipants(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count participants")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, s.submissionResponse(sub, count, nil))
}

// canModify is the ownership gate: the submitting promoter or an admin role.
func (s *service) canModify(ctx *ginext.Context, sub *model.Submission) bool {
	role := ctx.GetString(middleware.CtxRole)
	if role == middleware.RoleAdmin || role == middleware.RoleProjectAdmin {
		return true
	}
	return sub.SubmittedBy == ctx.GetString(middleware.CtxUserID)
}

func (s *service) respondRepoError(ctx *ginext.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, repo.ErrSubmissionNotFound):
		dto.SubmissionNotFoundError(ctx)
	case errors.Is(err, repo.ErrParticipantNotFound):
		dto.ParticipantNotFoundError(ctx)
	case errors.Is(err, repo.ErrCapacityReached):
		dto.CapacityReachedError(ctx)
	case errors.Is(err, repo.ErrSubmissionLocked):
		dto.SubmissionLockedError(ctx)
	case errors.Is(err, repo.ErrNotReviewable):
		dto.ReviewNotAllowedError(ctx, "Only submitted records can be reviewed")
	case errors.Is(err, repo.ErrNotResubmittable):
		dto.ReviewNotAllowedError(ctx, "Only rejected or draft records can be resubmitted")
	default:
		s.log.Error().Err(err).Msg(logMsg)
		dto.InternalServerError(ctx)
	}
}

func (s *service) submissionResponse(sub *model.Submission, totalParticipants int, photos []model.SubmissionPhoto) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		ID:                 sub.ID,
		ActivityStream:     sub.ActivityStream,
		SpecificLocation:   sub.SpecificLocation,
		CommunityGroupType: sub.CommunityGroupType,
		ParticipantCount:   sub.ParticipantCount,
		KeyIssues:          sub.KeyIssues,
		Status:             sub.Status.String(),
		SubmittedBy:        sub.SubmittedBy,
		SubmittedAt:        sub.SubmittedAt,
		SyncStatus:         sub.SyncStatus,
		TotalParticipants:  totalParticipants,
		CanAddMore:         totalParticipants < sub.ParticipantCount,
		Editable:           sub.Status.IsEditable(),
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
	if sub.ReviewedBy.Valid {
		resp.ReviewedBy = &sub.ReviewedBy.String
	}
	if sub.ReviewedAt.Valid {
		resp.ReviewedAt = &sub.ReviewedAt.Time
	}
	if sub.ReviewNotes.Valid {
		resp.ReviewNotes = &sub.ReviewNotes.String
	}
	for _, p := range photos {
		resp.Photos = append(resp.Photos, dto.PhotoResponse{
			ID:        p.ID,
			URL:       p.URL,
			CreatedAt: p.CreatedAt,
		})
	}
	return resp
}

func participantResponse(p *model.Participant) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ID:           p.ID,
		SubmissionID: p.SubmissionID,
		Name:         p.Name,
		Age:          p.Age,
		PhoneNumber:  p.PhoneNumber,
		Gender:       p.Gender,
		CreatedAt:    p.CreatedAt,
	}
}

func participantPage(items []model.Participant, total int, params pagination.Params, capacity int) dto.ParticipantPageResponse {
	resp := dto.ParticipantPageResponse{
		Items:      make([]dto.ParticipantResponse, 0, len(items)),
		Meta:       pagination.BuildMeta(total, params),
		CanAddMore: total < capacity,
	}
	for i := range items {
		resp.Items = append(resp.Items, participantResponse(&items[i]))
	}
	return resp
}

func paramID(ctx *ginext.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid submission ID")
		return 0, false
	}
	return id, true
}

