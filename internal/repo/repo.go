package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"fieldtrack/internal/model"
)

var (
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrCapacityReached     = errors.New("participant capacity reached")
	ErrSubmissionLocked    = errors.New("submission is approved and locked")
	ErrNotReviewable       = errors.New("submission is not awaiting review")
	ErrNotResubmittable    = errors.New("submission cannot be resubmitted")
)

type Repository interface {
	CreateSubmission(ctx context.Context, s *model.Submission) (int64, error)
	GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, status string, limit, offset int) ([]model.Submission, int, error)
	UpdateSubmissionContentTx(ctx context.Context, s *model.Submission) error
	ResubmitSubmissionTx(ctx context.Context, id int64) error
	ReviewSubmissionTx(ctx context.Context, id int64, reviewerID string, decision model.Status, note string) error

	AddParticipantTx(ctx context.Context, p *model.Participant) (int64, int, error)
	ListParticipantsPage(ctx context.Context, submissionID int64, limit, offset int) ([]model.Participant, int, error)
	CountParticipants(ctx context.Context, submissionID int64) (int, error)
	DeleteParticipantTx(ctx context.Context, submissionID, participantID int64) error

	AddPhoto(ctx context.Context, p *model.SubmissionPhoto) (int64, error)
	ListPhotos(ctx context.Context, submissionID int64) ([]model.SubmissionPhoto, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) CreateSubmission(ctx context.Context, s *model.Submission) (int64, error) {
	query := `
		INSERT INTO submissions (activity_stream, specific_location, community_group_type,
		                         participant_count, key_issues, status, submitted_by,
		                         submitted_at, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8)
		RETURNING id
	`

	row := r.db.QueryRowContext(ctx, query,
		s.ActivityStream, s.SpecificLocation, s.CommunityGroupType,
		s.ParticipantCount, s.KeyIssues, s.Status.String(), s.SubmittedBy, s.SyncStatus,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}
	return id, nil
}

const submissionColumns = `
	id, activity_stream, specific_location, community_group_type,
	participant_count, key_issues, status, submitted_by, submitted_at,
	reviewed_by, reviewed_at, review_notes, sync_status, created_at, updated_at
`

func scanSubmission(row interface{ Scan(...any) error }, s *model.Submission) error {
	var rawStatus string
	if err := row.Scan(
		&s.ID, &s.ActivityStream, &s.SpecificLocation, &s.CommunityGroupType,
		&s.ParticipantCount, &s.KeyIssues, &rawStatus, &s.SubmittedBy, &s.SubmittedAt,
		&s.ReviewedBy, &s.ReviewedAt, &s.ReviewNotes, &s.SyncStatus, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return err
	}
	status, err := model.ParseStatus(rawStatus)
	if err != nil {
		return err
	}
	s.Status = status
	return nil
}

func (r *repository) GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var s model.Submission
	if err := scanSubmission(row, &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

func (r *repository) ListSubmissions(ctx context.Context, status string, limit, offset int) ([]model.Submission, int, error) {
	countQuery := `SELECT COUNT(*) FROM submissions`
	listQuery := `SELECT ` + submissionColumns + ` FROM submissions`

	var args []any
	if status != "" {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, status)
	}
	listQuery += fmt.Sprintf(` ORDER BY submitted_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, 0, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, s)
	}

	return subs, total, nil
}

// UpdateSubmissionContentTx edits the content fields of a submission. The row
// is locked first so the editability check and the write see the same status.
// Status itself is never touched here.
func (r *repository) UpdateSubmissionContentTx(ctx context.Context, s *model.Submission) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	status, err := lockSubmissionStatus(ctx, tx, s.ID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !status.IsEditable() {
		_ = tx.Rollback()
		return ErrSubmissionLocked
	}

	query := `
		UPDATE submissions
		SET activity_stream = $1, specific_location = $2, community_group_type = $3,
		    key_issues = $4, updated_at = NOW()
		WHERE id = $5
	`
	if _, err := tx.ExecContext(ctx, query,
		s.ActivityStream, s.SpecificLocation, s.CommunityGroupType, s.KeyIssues, s.ID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ResubmitSubmissionTx moves a rejected (or legacy draft) submission back into
// review. Reviewer fields are cleared as a unit together with the status change.
func (r *repository) ResubmitSubmissionTx(ctx context.Context, id int64) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	status, err := lockSubmissionStatus(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !status.CanResubmit() {
		_ = tx.Rollback()
		return ErrNotResubmittable
	}

	query := `
		UPDATE submissions
		SET status = $1, reviewed_by = NULL, reviewed_at = NULL, review_notes = NULL,
		    submitted_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, query, model.StatusSubmitted.String(), id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to resubmit submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReviewSubmissionTx applies an approve or reject decision. Status and
// reviewer fields change atomically, and only from the submitted state.
// An approval stores a NULL note regardless of the argument.
func (r *repository) ReviewSubmissionTx(ctx context.Context, id int64, reviewerID string, decision model.Status, note string) error {
	if decision != model.StatusApproved && decision != model.StatusRejected {
		return fmt.Errorf("invalid review decision %q", decision)
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	status, err := lockSubmissionStatus(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !status.CanReview() {
		_ = tx.Rollback()
		return ErrNotReviewable
	}

	notes := sql.NullString{}
	if decision == model.StatusRejected {
		notes = sql.NullString{String: note, Valid: true}
	}

	query := `
		UPDATE submissions
		SET status = $1, reviewed_by = $2, reviewed_at = NOW(), review_notes = $3,
		    updated_at = NOW()
		WHERE id = $4
	`
	if _, err := tx.ExecContext(ctx, query, decision.String(), reviewerID, notes, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to apply review decision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddParticipantTx inserts a participant only if the submission is still
// editable and below its declared capacity. The submission row is locked for
// the duration, so two concurrent adds cannot both observe a free slot.
// Returns the new participant id and the authoritative count after the insert.
func (r *repository) AddParticipantTx(ctx context.Context, p *model.Participant) (int64, int, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var capacity int
	var rawStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT participant_count, status
		FROM submissions
		WHERE id = $1
		FOR UPDATE
	`, p.SubmissionID).Scan(&capacity, &rawStatus)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrSubmissionNotFound
		}
		return 0, 0, fmt.Errorf("failed to lock submission: %w", err)
	}

	status, err := model.ParseStatus(rawStatus)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, err
	}
	if !status.IsEditable() {
		_ = tx.Rollback()
		return 0, 0, ErrSubmissionLocked
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM participants
		WHERE submission_id = $1
	`, p.SubmissionID).Scan(&count)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, fmt.Errorf("failed to count participants: %w", err)
	}

	if count >= capacity {
		_ = tx.Rollback()
		return 0, 0, ErrCapacityReached
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO participants (submission_id, name, age, phone_number, gender, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, p.SubmissionID, p.Name, p.Age, p.PhoneNumber, p.Gender).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, fmt.Errorf("failed to insert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, count + 1, nil
}

// ListParticipantsPage returns one page ordered by insertion and the exact
// total for the submission, computed server-side in the same call so callers
// never derive counts from page length.
func (r *repository) ListParticipantsPage(ctx context.Context, submissionID int64, limit, offset int) ([]model.Participant, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM participants
		WHERE submission_id = $1
	`, submissionID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count participants: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, submission_id, name, age, phone_number, gender, created_at
		FROM participants
		WHERE submission_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, submissionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(
			&p.ID, &p.SubmissionID, &p.Name, &p.Age, &p.PhoneNumber, &p.Gender, &p.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, total, nil
}

func (r *repository) CountParticipants(ctx context.Context, submissionID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM participants
		WHERE submission_id = $1
	`, submissionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// DeleteParticipantTx removes one participant by its stable row id, never by
// field matching, so duplicate rosters cannot lose the wrong row.
func (r *repository) DeleteParticipantTx(ctx context.Context, submissionID, participantID int64) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	status, err := lockSubmissionStatus(ctx, tx, submissionID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if !status.IsEditable() {
		_ = tx.Rollback()
		return ErrSubmissionLocked
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM participants
		WHERE id = $1 AND submission_id = $2
	`, participantID, submissionID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrParticipantNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) AddPhoto(ctx context.Context, p *model.SubmissionPhoto) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO submission_photos (submission_id, url, public_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id
	`, p.SubmissionID, p.URL, p.PublicID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert photo: %w", err)
	}
	return id, nil
}

func (r *repository) ListPhotos(ctx context.Context, submissionID int64) ([]model.SubmissionPhoto, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, submission_id, url, public_id, created_at
		FROM submission_photos
		WHERE submission_id = $1
		ORDER BY created_at ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []model.SubmissionPhoto
	for rows.Next() {
		var p model.SubmissionPhoto
		if err := rows.Scan(&p.ID, &p.SubmissionID, &p.URL, &p.PublicID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}

	return photos, nil
}

func lockSubmissionStatus(ctx context.Context, tx *sql.Tx, id int64) (model.Status, error) {
	var rawStatus string
	err := tx.QueryRowContext(ctx, `
		SELECT status
		FROM submissions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&rawStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSubmissionNotFound
		}
		return "", fmt.Errorf("failed to lock submission: %w", err)
	}
	return model.ParseStatus(rawStatus)
}
