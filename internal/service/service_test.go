package service_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"fieldtrack/internal/api/api"
	"fieldtrack/internal/dto"
	"fieldtrack/internal/model"
	"fieldtrack/internal/repo"
	"fieldtrack/internal/service"
)

const testSecret = "test-secret"

// fakeRepo is an in-memory Repository with the same gating semantics as the
// SQL implementation: capacity and editability are checked inside the
// mutating calls, and counts are always computed from the stored rows.
type fakeRepo struct {
	mu           sync.Mutex
	subs         map[int64]*model.Submission
	participants map[int64][]model.Participant
	photos       map[int64][]model.SubmissionPhoto
	nextSubID    int64
	nextPartID   int64
	reviewCalls  int
	countErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:         make(map[int64]*model.Submission),
		participants: make(map[int64][]model.Participant),
		photos:       make(map[int64][]model.SubmissionPhoto),
	}
}

func (f *fakeRepo) seedSubmission(capacity int, status model.Status, owner string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSubID++
	now := time.Now()
	f.subs[f.nextSubID] = &model.Submission{
		ID:                 f.nextSubID,
		ActivityStream:     "health-outreach",
		SpecificLocation:   "Adama",
		CommunityGroupType: "youth",
		ParticipantCount:   capacity,
		Status:             status,
		SubmittedBy:        owner,
		SubmittedAt:        now,
		SyncStatus:         "synced",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return f.nextSubID
}

// seedParticipant bypasses the capacity gate, standing in for another actor
// writing directly to storage.
func (f *fakeRepo) seedParticipant(subID int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPartID++
	f.participants[subID] = append(f.participants[subID], model.Participant{
		ID:           f.nextPartID,
		SubmissionID: subID,
		Name:         name,
		Age:          20,
		PhoneNumber:  "0900000000",
		Gender:       "female",
		CreatedAt:    time.Now(),
	})
}

func (f *fakeRepo) CreateSubmission(_ context.Context, s *model.Submission) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSubID++
	now := time.Now()
	cp := *s
	cp.ID = f.nextSubID
	cp.SubmittedAt = now
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.subs[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeRepo) GetSubmissionByID(_ context.Context, id int64) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, repo.ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListSubmissions(_ context.Context, status string, limit, offset int) ([]model.Submission, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Submission
	for _, s := range f.subs {
		if status == "" || s.Status.String() == status {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeRepo) UpdateSubmissionContentTx(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[s.ID]
	if !ok {
		return repo.ErrSubmissionNotFound
	}
	if !cur.Status.IsEditable() {
		return repo.ErrSubmissionLocked
	}
	cur.ActivityStream = s.ActivityStream
	cur.SpecificLocation = s.SpecificLocation
	cur.CommunityGroupType = s.CommunityGroupType
	cur.KeyIssues = s.KeyIssues
	cur.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) ResubmitSubmissionTx(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[id]
	if !ok {
		return repo.ErrSubmissionNotFound
	}
	if !cur.Status.CanResubmit() {
		return repo.ErrNotResubmittable
	}
	cur.Status = model.StatusSubmitted
	cur.ReviewedBy = sql.NullString{}
	cur.ReviewedAt = sql.NullTime{}
	cur.ReviewNotes = sql.NullString{}
	cur.SubmittedAt = time.Now()
	cur.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) ReviewSubmissionTx(_ context.Context, id int64, reviewerID string, decision model.Status, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewCalls++
	cur, ok := f.subs[id]
	if !ok {
		return repo.ErrSubmissionNotFound
	}
	if !cur.Status.CanReview() {
		return repo.ErrNotReviewable
	}
	cur.Status = decision
	cur.ReviewedBy = sql.NullString{String: reviewerID, Valid: true}
	cur.ReviewedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if decision == model.StatusRejected {
		cur.ReviewNotes = sql.NullString{String: note, Valid: true}
	} else {
		cur.ReviewNotes = sql.NullString{}
	}
	cur.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) AddParticipantTx(_ context.Context, p *model.Participant) (int64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[p.SubmissionID]
	if !ok {
		return 0, 0, repo.ErrSubmissionNotFound
	}
	if !sub.Status.IsEditable() {
		return 0, 0, repo.ErrSubmissionLocked
	}
	count := len(f.participants[p.SubmissionID])
	if count >= sub.ParticipantCount {
		return 0, 0, repo.ErrCapacityReached
	}
	f.nextPartID++
	cp := *p
	cp.ID = f.nextPartID
	cp.CreatedAt = time.Now()
	f.participants[p.SubmissionID] = append(f.participants[p.SubmissionID], cp)
	return cp.ID, count + 1, nil
}

func (f *fakeRepo) ListParticipantsPage(_ context.Context, submissionID int64, limit, offset int) ([]model.Participant, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.participants[submissionID]
	total := len(rows)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]model.Participant, end-offset)
	copy(page, rows[offset:end])
	return page, total, nil
}

func (f *fakeRepo) CountParticipants(_ context.Context, submissionID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.participants[submissionID]), nil
}

func (f *fakeRepo) DeleteParticipantTx(_ context.Context, submissionID, participantID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[submissionID]
	if !ok {
		return repo.ErrSubmissionNotFound
	}
	if !sub.Status.IsEditable() {
		return repo.ErrSubmissionLocked
	}
	rows := f.participants[submissionID]
	for i := range rows {
		if rows[i].ID == participantID {
			f.participants[submissionID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return repo.ErrParticipantNotFound
}

func (f *fakeRepo) AddPhoto(_ context.Context, p *model.SubmissionPhoto) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPartID++
	cp := *p
	cp.ID = f.nextPartID
	cp.CreatedAt = time.Now()
	f.photos[p.SubmissionID] = append(f.photos[p.SubmissionID], cp)
	return cp.ID, nil
}

func (f *fakeRepo) ListPhotos(_ context.Context, submissionID int64) ([]model.SubmissionPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SubmissionPhoto(nil), f.photos[submissionID]...), nil
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

func newTestServer(t *testing.T) (*ginext.Engine, *fakeRepo) {
	t.Helper()
	zlog.Init()
	log := zlog.Logger
	fake := newFakeRepo()
	svc := service.NewService(fake, &log, nil, nil, nil, nil)
	app := api.NewRouters(&api.Routers{Service: svc, JWTSecret: testSecret})
	return app, fake
}

// fakePhotoStore stands in for the Cloudinary-backed store and records how
// many uploads actually reached it.
type fakePhotoStore struct {
	mu      sync.Mutex
	uploads int
}

func (f *fakePhotoStore) Upload(_ context.Context, _ multipart.File, header *multipart.FileHeader) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return "https://cdn.example.com/" + header.Filename, "submissions/" + header.Filename, nil
}

func (f *fakePhotoStore) Delete(context.Context, string) error { return nil }

func newTestServerWithPhotos(t *testing.T) (*ginext.Engine, *fakeRepo, *fakePhotoStore) {
	t.Helper()
	zlog.Init()
	log := zlog.Logger
	fake := newFakeRepo()
	store := &fakePhotoStore{}
	svc := service.NewService(fake, &log, nil, store, nil, nil)
	app := api.NewRouters(&api.Routers{Service: svc, JWTSecret: testSecret})
	return app, fake, store
}

func uploadPhoto(t *testing.T, app *ginext.Engine, token string, subID int64, filename string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("photo", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("not-really-a-jpeg"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/submissions/%d/photos", subID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, app *ginext.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Error  *dto.Error      `json:"error"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "ok", envelope.Status, "body: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error, "body: %s", rec.Body.String())
	return envelope.Error.Code
}

type addResult struct {
	Participant dto.ParticipantResponse `json:"participant"`
	TotalCount  int                     `json:"total_count"`
	CanAddMore  bool                    `json:"can_add_more"`
}

func addParticipant(t *testing.T, app *ginext.Engine, token string, subID int64, name, phone string, age int) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/participants", subID), token, map[string]any{
		"name":         name,
		"age":          age,
		"phone_number": phone,
		"gender":       "male",
	})
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	app, _ := newTestServer(t)
	rec := doJSON(t, app, http.MethodGet, "/v1/submissions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSubmissionValidation(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")

	rec := doJSON(t, app, http.MethodPost, "/v1/submissions", token, map[string]any{
		"activity_stream":      "",
		"specific_location":    "Adama",
		"community_group_type": "youth",
		"participant_count":    10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, app, http.MethodPost, "/v1/submissions", token, map[string]any{
		"activity_stream":      "health-outreach",
		"specific_location":    "Adama",
		"community_group_type": "youth",
		"participant_count":    0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fake.subs)
}

func TestCreateSubmissionStartsSubmitted(t *testing.T) {
	app, _ := newTestServer(t)
	token := signToken(t, "P1", "promoter")

	rec := doJSON(t, app, http.MethodPost, "/v1/submissions", token, map[string]any{
		"activity_stream":      "health-outreach",
		"specific_location":    "Adama",
		"community_group_type": "youth",
		"participant_count":    3,
		"key_issues":           "water access",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sub dto.SubmissionResponse
	decodeData(t, rec, &sub)
	assert.Equal(t, "submitted", sub.Status)
	assert.Equal(t, "P1", sub.SubmittedBy)
	assert.True(t, sub.Editable)
	assert.True(t, sub.CanAddMore)
	assert.Zero(t, sub.TotalParticipants)
}

// Scenario A: capacity 2 admits exactly two participants and the third
// attempt is rejected without mutating storage.
func TestCapacityBound(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(2, model.StatusSubmitted, "P1")

	rec := addParticipant(t, app, token, subID, "Abebe", "0911111111", 30)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res addResult
	decodeData(t, rec, &res)
	assert.Equal(t, 1, res.TotalCount)
	assert.True(t, res.CanAddMore)

	rec = addParticipant(t, app, token, subID, "Kebede", "0922222222", 25)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeData(t, rec, &res)
	assert.Equal(t, 2, res.TotalCount)
	assert.False(t, res.CanAddMore)

	rec = addParticipant(t, app, token, subID, "Chaltu", "0933333333", 22)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.CapacityReached, errorCode(t, rec))

	count, _ := fake.CountParticipants(context.Background(), subID)
	assert.Equal(t, 2, count)
}

// The served total must always come from storage, so a write by another actor
// shows up on the next fetch instead of a stale local count.
func TestCountReflectsExternalWriter(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")

	rec := addParticipant(t, app, token, subID, "Abebe", "0911111111", 30)
	require.Equal(t, http.StatusCreated, rec.Code)

	fake.seedParticipant(subID, "offline-sync")

	rec = doJSON(t, app, http.MethodGet, fmt.Sprintf("/v1/submissions/%d/participants?page=1", subID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page dto.ParticipantPageResponse
	decodeData(t, rec, &page)
	assert.Equal(t, 2, page.Meta.TotalCount)
	assert.Len(t, page.Items, 2)
}

func TestAddParticipantValidation(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")

	rec := addParticipant(t, app, token, subID, "Abebe", "0911111111", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/participants", subID), token, map[string]any{
		"name":         "Abebe",
		"age":          30,
		"phone_number": "0911111111",
		"gender":       "unspecified",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	count, _ := fake.CountParticipants(context.Background(), subID)
	assert.Zero(t, count)
}

// 11 participants, page size 5: deleting the only row of page 3 must land the
// client on page 2 with rows 6-10.
func TestPaginationRecoveryAfterDelete(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(20, model.StatusSubmitted, "P1")
	for i := 0; i < 11; i++ {
		fake.seedParticipant(subID, fmt.Sprintf("p%02d", i+1))
	}

	rec := doJSON(t, app, http.MethodGet, fmt.Sprintf("/v1/submissions/%d/participants?page=3", subID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page dto.ParticipantPageResponse
	decodeData(t, rec, &page)
	require.Len(t, page.Items, 1)
	lastID := page.Items[0].ID

	rec = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/v1/submissions/%d/participants/%d?page=3", subID, lastID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &page)
	assert.Equal(t, 2, page.Meta.Page)
	assert.Equal(t, 10, page.Meta.TotalCount)
	assert.Equal(t, 2, page.Meta.TotalPages)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "p06", page.Items[0].Name)
	assert.Equal(t, "p10", page.Items[4].Name)
}

// Deleting the last remaining participant keeps the client on page 1 of an
// empty, still-valid page.
func TestPaginationRecoveryToEmpty(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")
	fake.seedParticipant(subID, "only")

	rec := doJSON(t, app, http.MethodGet, fmt.Sprintf("/v1/submissions/%d/participants?page=1", subID), token, nil)
	var page dto.ParticipantPageResponse
	decodeData(t, rec, &page)
	require.Len(t, page.Items, 1)

	rec = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/v1/submissions/%d/participants/%d?page=1", subID, page.Items[0].ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &page)
	assert.Equal(t, 1, page.Meta.Page)
	assert.Equal(t, 0, page.Meta.TotalCount)
	assert.Equal(t, 1, page.Meta.TotalPages)
	assert.Empty(t, page.Items)
}

func TestRemoveUnknownParticipant(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")

	rec := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/v1/submissions/%d/participants/999", subID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, dto.ParticipantNotFound, errorCode(t, rec))
}

// Scenario B: approving sets status and the reviewer unit, and locks editing.
func TestApproveSubmission(t *testing.T) {
	app, fake := newTestServer(t)
	reviewer := signToken(t, "R1", "project-admin")
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(3, model.StatusSubmitted, "P1")

	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/approve", subID), reviewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sub dto.SubmissionResponse
	decodeData(t, rec, &sub)
	assert.Equal(t, "approved", sub.Status)
	require.NotNil(t, sub.ReviewedBy)
	assert.Equal(t, "R1", *sub.ReviewedBy)
	assert.NotNil(t, sub.ReviewedAt)
	assert.Nil(t, sub.ReviewNotes)
	assert.False(t, sub.Editable)

	// Approved records refuse content edits.
	rec = doJSON(t, app, http.MethodPut, fmt.Sprintf("/v1/submissions/%d", subID), owner, map[string]any{
		"activity_stream":      "changed",
		"specific_location":    "changed",
		"community_group_type": "changed",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.SubmissionLocked, errorCode(t, rec))

	// And refuse further participants.
	rec = addParticipant(t, app, owner, subID, "Late", "0944444444", 40)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.SubmissionLocked, errorCode(t, rec))
}

func TestApproveRequiresReviewerRole(t *testing.T) {
	app, fake := newTestServer(t)
	promoter := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(3, model.StatusSubmitted, "P1")

	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/approve", subID), promoter, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, model.StatusSubmitted, fake.subs[subID].Status)
}

func TestRejectRequiresNote(t *testing.T) {
	app, fake := newTestServer(t)
	reviewer := signToken(t, "R1", "project-admin")
	subID := fake.seedSubmission(3, model.StatusSubmitted, "P1")

	for _, note := range []string{"", "   "} {
		rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/reject", subID), reviewer, map[string]any{
			"note": note,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	assert.Zero(t, fake.reviewCalls, "blank notes must never reach persistence")

	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/reject", subID), reviewer, map[string]any{
		"note": "needs more detail",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sub dto.SubmissionResponse
	decodeData(t, rec, &sub)
	assert.Equal(t, "rejected", sub.Status)
	require.NotNil(t, sub.ReviewNotes)
	assert.Equal(t, "needs more detail", *sub.ReviewNotes)
	require.NotNil(t, sub.ReviewedBy)
	assert.Equal(t, "R1", *sub.ReviewedBy)
	assert.NotNil(t, sub.ReviewedAt)
	assert.True(t, sub.Editable)
}

func TestReviewOnlyFromSubmitted(t *testing.T) {
	app, fake := newTestServer(t)
	reviewer := signToken(t, "R1", "admin")
	subID := fake.seedSubmission(3, model.StatusApproved, "P1")

	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/reject", subID), reviewer, map[string]any{
		"note": "too late",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.ReviewNotAllowed, errorCode(t, rec))
}

func TestResubmitClearsReviewerFields(t *testing.T) {
	app, fake := newTestServer(t)
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(3, model.StatusSubmitted, "P1")

	reviewer := signToken(t, "R1", "project-admin")
	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/reject", subID), reviewer, map[string]any{
		"note": "fix the roster",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/resubmit", subID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sub dto.SubmissionResponse
	decodeData(t, rec, &sub)
	assert.Equal(t, "submitted", sub.Status)
	assert.Nil(t, sub.ReviewedBy)
	assert.Nil(t, sub.ReviewedAt)
	assert.Nil(t, sub.ReviewNotes)
}

func TestResubmitOnlyFromRejectedOrDraft(t *testing.T) {
	app, fake := newTestServer(t)
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(3, model.StatusApproved, "P1")

	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/resubmit", subID), owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.ReviewNotAllowed, errorCode(t, rec))
}

func TestEditOwnershipGate(t *testing.T) {
	app, fake := newTestServer(t)
	stranger := signToken(t, "P2", "promoter")
	subID := fake.seedSubmission(3, model.StatusSubmitted, "P1")

	rec := doJSON(t, app, http.MethodPut, fmt.Sprintf("/v1/submissions/%d", subID), stranger, map[string]any{
		"activity_stream":      "hijack",
		"specific_location":    "elsewhere",
		"community_group_type": "other",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "health-outreach", fake.subs[subID].ActivityStream)
}

func TestGetUnknownSubmission(t *testing.T) {
	app, _ := newTestServer(t)
	token := signToken(t, "P1", "promoter")

	rec := doJSON(t, app, http.MethodGet, "/v1/submissions/424242", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, dto.SubmissionNotFound, errorCode(t, rec))
}

func TestEditRejectedKeepsStatus(t *testing.T) {
	app, fake := newTestServer(t)
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(3, model.StatusRejected, "P1")

	rec := doJSON(t, app, http.MethodPut, fmt.Sprintf("/v1/submissions/%d", subID), owner, map[string]any{
		"activity_stream":      "health-outreach",
		"specific_location":    "Bishoftu",
		"community_group_type": "youth",
		"key_issues":           "revised",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sub dto.SubmissionResponse
	decodeData(t, rec, &sub)
	// Saving an edit never changes status; resubmission is explicit.
	assert.Equal(t, "rejected", sub.Status)
	assert.Equal(t, "Bishoftu", sub.SpecificLocation)
}

func TestUploadPhoto(t *testing.T) {
	app, fake, store := newTestServerWithPhotos(t)
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")

	rec := uploadPhoto(t, app, owner, subID, "evidence.jpg")
	require.Equal(t, http.StatusCreated, rec.Code)

	var photo dto.PhotoResponse
	decodeData(t, rec, &photo)
	assert.NotZero(t, photo.ID)
	assert.Equal(t, "https://cdn.example.com/evidence.jpg", photo.URL)
	assert.Equal(t, 1, store.uploads)

	rows, err := fake.ListPhotos(context.Background(), subID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "submissions/evidence.jpg", rows[0].PublicID)

	// The photo travels with the record on subsequent fetches.
	rec = doJSON(t, app, http.MethodGet, fmt.Sprintf("/v1/submissions/%d", subID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub dto.SubmissionResponse
	decodeData(t, rec, &sub)
	require.Len(t, sub.Photos, 1)
	assert.Equal(t, photo.URL, sub.Photos[0].URL)
}

// Approved records refuse new evidence, and the store is never reached.
func TestUploadPhotoLockedWhenApproved(t *testing.T) {
	app, fake, store := newTestServerWithPhotos(t)
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusApproved, "P1")

	rec := uploadPhoto(t, app, owner, subID, "late.jpg")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.SubmissionLocked, errorCode(t, rec))
	assert.Zero(t, store.uploads)

	rows, err := fake.ListPhotos(context.Background(), subID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUploadPhotoOwnershipGate(t *testing.T) {
	app, fake, store := newTestServerWithPhotos(t)
	stranger := signToken(t, "P2", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")

	rec := uploadPhoto(t, app, stranger, subID, "sneaky.jpg")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, store.uploads)
}

func TestUploadPhotoRequiresFile(t *testing.T) {
	app, fake, store := newTestServerWithPhotos(t)
	owner := signToken(t, "P1", "promoter")
	subID := fake.seedSubmission(5, model.StatusSubmitted, "P1")

	rec := doJSON(t, app, http.MethodPost, fmt.Sprintf("/v1/submissions/%d/photos", subID), owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dto.FieldBadFormat, errorCode(t, rec))
	assert.Zero(t, store.uploads)
}

// A failing count mid-listing must fail the whole request, not quietly
// shorten the page.
func TestListSubmissionsCountFailureIs500(t *testing.T) {
	app, fake := newTestServer(t)
	token := signToken(t, "P1", "promoter")
	fake.seedSubmission(3, model.StatusSubmitted, "P1")
	fake.seedSubmission(3, model.StatusSubmitted, "P1")

	fake.countErr = errors.New("connection reset")

	rec := doJSON(t, app, http.MethodGet, "/v1/submissions", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, dto.ServiceUnavailable, errorCode(t, rec))
}
