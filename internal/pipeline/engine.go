package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"pipetrack/internal/auth"
	"pipetrack/internal/database"
	"pipetrack/internal/metrics"
	"pipetrack/internal/scan"
)

// Session identifies the caller of a transition. It is passed explicitly
// into every call instead of being looked up from ambient state, so
// concurrent sessions and tests stay independent.
type Session struct {
	Role          auth.Role
	UserID        uint
	EmpID         string
	CorrelationID string
}

// Upload is a pending attachment. The engine validates the content type,
// forwards the bytes to the object store and keeps only the returned
// opaque reference.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
	Size        int64
}

// AttachmentStore is the narrow slice of the object-store client the
// engine needs. storage.Client satisfies it.
type AttachmentStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// Notifier receives the candidate's fresh state after every accepted
// transition, so derived views can update incrementally.
type Notifier interface {
	CandidateChanged(ctx context.Context, cand database.Candidate, stage Stage) error
}

// Scanner screens attachment content before it is stored. scan.ClamdScanner
// satisfies it; a nil scanner disables screening.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// allowedMIME maps accepted attachment content types to the stored file
// extension.
var allowedMIME = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// casRetries bounds the compare-and-set loop on last-write-wins updates.
const casRetries = 3

// Engine is the sole authority for mutating candidate and interview state.
// Every mutation is a named transition validated against role, payload and
// the current stored record.
type Engine struct {
	db       *gorm.DB
	store    AttachmentStore
	notifier Notifier
	scanner  Scanner
	logger   *slog.Logger
}

// NewEngine builds a transition engine. notifier and scanner may be nil.
func NewEngine(db *gorm.DB, store AttachmentStore, notifier Notifier, scanner Scanner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, store: store, notifier: notifier, scanner: scanner, logger: logger}
}

// ScheduleMockInput carries the scheduleMock payload.
type ScheduleMockInput struct {
	EmpID         string
	ScheduledAt   time.Time
	InterviewerID string
	Attachments   []Upload
}

// ScheduleMock creates a mock interview for the candidate. Only one mock
// interview may be open at a time.
func (e *Engine) ScheduleMock(ctx context.Context, sess Session, in ScheduleMockInput) (mi *database.MockInterview, err error) {
	defer metrics.ObserveTransition("scheduleMock", &err)

	if err = requireRole(sess, auth.RoleDelivery); err != nil {
		return nil, err
	}
	if in.ScheduledAt.IsZero() {
		return nil, Validationf("date", "schedule date is required")
	}
	if strings.TrimSpace(in.InterviewerID) == "" {
		return nil, Validationf("interviewerId", "interviewer is required")
	}

	cand, err := e.loadCandidate(ctx, in.EmpID)
	if err != nil {
		return nil, err
	}
	if cand.TerminalState != "" {
		return nil, StaleStatef("candidate %s is terminal (%s)", cand.EmpID, cand.TerminalState)
	}

	var open int64
	if err = e.db.WithContext(ctx).
		Model(&database.MockInterview{}).
		Where("candidate_id = ? AND status = ?", cand.ID, database.InterviewScheduled).
		Count(&open).Error; err != nil {
		return nil, fmt.Errorf("count open mock interviews: %w", err)
	}
	if open > 0 {
		return nil, DuplicateSchedulef("candidate %s already has a pending mock interview", cand.EmpID)
	}

	refs := make([]string, 0, len(in.Attachments))
	for i := range in.Attachments {
		ref, uploadErr := e.uploadAttachment(ctx, cand.EmpID, in.Attachments[i])
		if uploadErr != nil {
			return nil, uploadErr
		}
		refs = append(refs, ref)
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode attachment refs: %w", err)
	}

	record := database.MockInterview{
		CandidateID:    cand.ID,
		ScheduledAt:    in.ScheduledAt,
		InterviewerID:  in.InterviewerID,
		AttachmentRefs: refsJSON,
		Status:         database.InterviewScheduled,
	}
	if err = e.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create mock interview: %w", err)
	}

	e.notifyCandidate(ctx, cand.ID)
	return &record, nil
}

// MockFeedbackInput carries the submitMockFeedback payload. ExpectedVersion
// below zero skips the caller-side staleness check; the write still runs as
// a compare-and-set against the stored version.
type MockFeedbackInput struct {
	InterviewID           uint
	TechnicalFeedback     string
	CommunicationFeedback string
	TechnicalScore        int
	CommunicationScore    int
	SentToSales           bool
	FeedbackFile          *Upload
	ExpectedVersion       int64
}

// SubmitMockFeedback completes a mock interview with scores and feedback.
// Re-submission on an already completed interview revises it in place;
// concurrent writers serialize with the last payload winning, re-validated
// against the stored record on every attempt.
func (e *Engine) SubmitMockFeedback(ctx context.Context, sess Session, in MockFeedbackInput) (mi *database.MockInterview, err error) {
	defer metrics.ObserveTransition("submitMockFeedback", &err)

	if err = requireRole(sess, auth.RoleDelivery); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.TechnicalFeedback) == "" {
		return nil, Validationf("technicalFeedback", "technical feedback is required")
	}
	if strings.TrimSpace(in.CommunicationFeedback) == "" {
		return nil, Validationf("communicationFeedback", "communication feedback is required")
	}
	if in.TechnicalScore < 0 || in.TechnicalScore > 10 {
		return nil, Validationf("technicalScore", "score must be within 0..10")
	}
	if in.CommunicationScore < 0 || in.CommunicationScore > 10 {
		return nil, Validationf("communicationScore", "score must be within 0..10")
	}

	var record database.MockInterview
	if err = e.firstOr(ctx, &record, in.InterviewID, "mock interview"); err != nil {
		return nil, err
	}
	if in.ExpectedVersion >= 0 && in.ExpectedVersion != record.Version {
		return nil, StaleStatef("mock interview %d changed since it was read", record.ID)
	}
	cand, err := e.liveCandidate(ctx, record.CandidateID)
	if err != nil {
		return nil, err
	}

	var feedbackRef string
	if in.FeedbackFile != nil {
		feedbackRef, err = e.uploadAttachment(ctx, cand.EmpID, *in.FeedbackFile)
		if err != nil {
			return nil, err
		}
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		updates := map[string]any{
			"status":                 database.InterviewCompleted,
			"technical_score":        in.TechnicalScore,
			"communication_score":    in.CommunicationScore,
			"technical_feedback":     in.TechnicalFeedback,
			"communication_feedback": in.CommunicationFeedback,
			"sent_to_sales":          in.SentToSales,
			"version":                record.Version + 1,
		}
		if feedbackRef != "" {
			updates["feedback_file_ref"] = feedbackRef
		}

		res := e.db.WithContext(ctx).
			Model(&database.MockInterview{}).
			Where("id = ? AND version = ?", record.ID, record.Version).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update mock interview: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			if err = e.db.WithContext(ctx).First(&record, record.ID).Error; err != nil {
				return nil, fmt.Errorf("reload mock interview: %w", err)
			}
			e.notifyCandidate(ctx, record.CandidateID)
			return &record, nil
		}

		// Lost the race; re-read and validate against the current state
		// before trying again so a stale caller cannot resurrect an
		// inconsistent record.
		if err = e.firstOr(ctx, &record, in.InterviewID, "mock interview"); err != nil {
			return nil, err
		}
	}
	return nil, StaleStatef("mock interview %d is being updated concurrently", in.InterviewID)
}

// SendToSales forwards a completed mock interview to the sales team. All
// feedback fields must be present.
func (e *Engine) SendToSales(ctx context.Context, sess Session, interviewID uint) (mi *database.MockInterview, err error) {
	defer metrics.ObserveTransition("sendToSales", &err)

	if err = requireRole(sess, auth.RoleDelivery); err != nil {
		return nil, err
	}

	var record database.MockInterview
	if err = e.firstOr(ctx, &record, interviewID, "mock interview"); err != nil {
		return nil, err
	}
	if _, err = e.liveCandidate(ctx, record.CandidateID); err != nil {
		return nil, err
	}
	if record.Status != database.InterviewCompleted {
		return nil, StaleStatef("mock interview %d is not completed", record.ID)
	}
	if record.TechnicalScore == nil || record.CommunicationScore == nil ||
		strings.TrimSpace(record.TechnicalFeedback) == "" ||
		strings.TrimSpace(record.CommunicationFeedback) == "" {
		return nil, IncompleteFeedbackf("mock interview %d has incomplete feedback", record.ID)
	}
	if record.SentToSales {
		return &record, nil
	}

	res := e.db.WithContext(ctx).
		Model(&database.MockInterview{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]any{"sent_to_sales": true, "version": record.Version + 1})
	if res.Error != nil {
		return nil, fmt.Errorf("update mock interview: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, StaleStatef("mock interview %d changed since it was read", record.ID)
	}

	if err = e.db.WithContext(ctx).First(&record, record.ID).Error; err != nil {
		return nil, fmt.Errorf("reload mock interview: %w", err)
	}
	e.notifyCandidate(ctx, record.CandidateID)
	return &record, nil
}

// UpdateInterviewStatus marks a scheduled mock interview as conducted.
// Idempotent no-op when the interview is already completed.
func (e *Engine) UpdateInterviewStatus(ctx context.Context, sess Session, interviewID uint) (mi *database.MockInterview, err error) {
	defer metrics.ObserveTransition("updateInterviewStatus", &err)

	if err = requireRole(sess, auth.RoleDelivery); err != nil {
		return nil, err
	}

	var record database.MockInterview
	if err = e.firstOr(ctx, &record, interviewID, "mock interview"); err != nil {
		return nil, err
	}
	if record.Status == database.InterviewCompleted {
		return &record, nil
	}

	res := e.db.WithContext(ctx).
		Model(&database.MockInterview{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]any{"status": database.InterviewCompleted, "version": record.Version + 1})
	if res.Error != nil {
		return nil, fmt.Errorf("update mock interview: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another writer got there first; the target state is the same.
		if err = e.firstOr(ctx, &record, interviewID, "mock interview"); err != nil {
			return nil, err
		}
		return &record, nil
	}

	if err = e.db.WithContext(ctx).First(&record, record.ID).Error; err != nil {
		return nil, fmt.Errorf("reload mock interview: %w", err)
	}
	e.notifyCandidate(ctx, record.CandidateID)
	return &record, nil
}

// ScheduleClientInterviewInput carries the scheduleClientInterview payload.
// Attachment is mandatory, exactly one.
type ScheduleClientInterviewInput struct {
	EmpID               string
	ClientName          string
	Level               int
	JobDescriptionTitle string
	MeetingLink         string
	InterviewerEmail    string
	ScheduledAt         time.Time
	Attachment          *Upload
}

// ScheduleClientInterview creates a leveled client interview. The candidate
// must have been forwarded to sales, or already hold a prior client
// interview (re-interview).
func (e *Engine) ScheduleClientInterview(ctx context.Context, sess Session, in ScheduleClientInterviewInput) (ci *database.ClientInterview, err error) {
	defer metrics.ObserveTransition("scheduleClientInterview", &err)

	if err = requireRole(sess, auth.RoleSales); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ClientName) == "" {
		return nil, Validationf("client", "client name is required")
	}
	if in.Level < 1 {
		return nil, Validationf("level", "level must be a positive integer")
	}
	if strings.TrimSpace(in.JobDescriptionTitle) == "" {
		return nil, Validationf("jobDescriptionTitle", "job description title is required")
	}
	if strings.TrimSpace(in.MeetingLink) == "" {
		return nil, Validationf("meetingLink", "meeting link is required")
	}
	if strings.TrimSpace(in.InterviewerEmail) == "" {
		return nil, Validationf("interviewerEmail", "interviewer email is required")
	}
	if in.ScheduledAt.IsZero() {
		return nil, Validationf("date", "schedule date is required")
	}
	if in.Attachment == nil {
		return nil, Validationf("file", "exactly one attachment is required")
	}

	cand, err := e.loadCandidate(ctx, in.EmpID)
	if err != nil {
		return nil, err
	}
	if cand.TerminalState != "" {
		return nil, StaleStatef("candidate %s is terminal (%s)", cand.EmpID, cand.TerminalState)
	}

	eligible := len(cand.ClientInterviews) > 0
	if !eligible {
		for _, mi := range cand.MockInterviews {
			if mi.SentToSales && mi.Status == database.InterviewCompleted {
				eligible = true
				break
			}
		}
	}
	if !eligible {
		return nil, StaleStatef("candidate %s has not been forwarded to sales", cand.EmpID)
	}

	maxLevel := 0
	for _, prior := range cand.ClientInterviews {
		if prior.Status == database.InterviewScheduled {
			return nil, DuplicateSchedulef("candidate %s already has a pending client interview at level %d", cand.EmpID, prior.Level)
		}
		if prior.Level > maxLevel {
			maxLevel = prior.Level
		}
	}
	if in.Level <= maxLevel {
		return nil, Validationf("level", "level must exceed the previous level %d", maxLevel)
	}

	ref, err := e.uploadAttachment(ctx, cand.EmpID, *in.Attachment)
	if err != nil {
		return nil, err
	}

	record := database.ClientInterview{
		CandidateID:         cand.ID,
		ClientName:          in.ClientName,
		Level:               in.Level,
		JobDescriptionTitle: in.JobDescriptionTitle,
		MeetingLink:         in.MeetingLink,
		InterviewerEmail:    in.InterviewerEmail,
		ScheduledAt:         in.ScheduledAt,
		AttachmentRef:       ref,
		Status:              database.InterviewScheduled,
	}
	if err = e.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create client interview: %w", err)
	}

	e.notifyCandidate(ctx, cand.ID)
	return &record, nil
}

// ClientFeedbackInput carries the updateClientInterview payload.
type ClientFeedbackInput struct {
	InterviewID        uint
	Result             string
	Feedback           string
	TechnicalScore     float64
	CommunicationScore float64
	DeployedStatus     bool
	FeedbackFile       *Upload
	ExpectedVersion    int64
}

// UpdateClientInterview completes a client interview with its result.
// deployedStatus may only accompany a selected result.
func (e *Engine) UpdateClientInterview(ctx context.Context, sess Session, in ClientFeedbackInput) (ci *database.ClientInterview, err error) {
	defer metrics.ObserveTransition("updateClientInterview", &err)

	if err = requireRole(sess, auth.RoleSales); err != nil {
		return nil, err
	}
	if in.Result != database.ResultSelected && in.Result != database.ResultRejected {
		return nil, Validationf("result", "result must be selected or rejected")
	}
	if strings.TrimSpace(in.Feedback) == "" {
		return nil, Validationf("feedback", "feedback is required")
	}
	if err = validateClientScore("technicalScore", in.TechnicalScore); err != nil {
		return nil, err
	}
	if err = validateClientScore("communicationScore", in.CommunicationScore); err != nil {
		return nil, err
	}
	if in.DeployedStatus && in.Result != database.ResultSelected {
		return nil, Validationf("deployedStatus", "deployment requires a selected result")
	}

	var record database.ClientInterview
	if err = e.firstOr(ctx, &record, in.InterviewID, "client interview"); err != nil {
		return nil, err
	}
	if in.ExpectedVersion >= 0 && in.ExpectedVersion != record.Version {
		return nil, StaleStatef("client interview %d changed since it was read", record.ID)
	}

	var feedbackRef string
	if in.FeedbackFile != nil {
		cand := database.Candidate{}
		if err = e.db.WithContext(ctx).First(&cand, record.CandidateID).Error; err != nil {
			return nil, fmt.Errorf("load candidate: %w", err)
		}
		feedbackRef, err = e.uploadAttachment(ctx, cand.EmpID, *in.FeedbackFile)
		if err != nil {
			return nil, err
		}
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		updates := map[string]any{
			"status":              database.InterviewCompleted,
			"result":              in.Result,
			"feedback":            in.Feedback,
			"technical_score":     in.TechnicalScore,
			"communication_score": in.CommunicationScore,
			"deployed_status":     in.DeployedStatus,
			"version":             record.Version + 1,
		}
		if feedbackRef != "" {
			updates["feedback_file_ref"] = feedbackRef
		}

		res := e.db.WithContext(ctx).
			Model(&database.ClientInterview{}).
			Where("id = ? AND version = ?", record.ID, record.Version).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update client interview: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			if err = e.db.WithContext(ctx).First(&record, record.ID).Error; err != nil {
				return nil, fmt.Errorf("reload client interview: %w", err)
			}
			e.notifyCandidate(ctx, record.CandidateID)
			return &record, nil
		}

		if err = e.firstOr(ctx, &record, in.InterviewID, "client interview"); err != nil {
			return nil, err
		}
	}
	return nil, StaleStatef("client interview %d is being updated concurrently", in.InterviewID)
}

// SubmitResume stores a candidate's resume reference. Employees may only
// submit their own.
func (e *Engine) SubmitResume(ctx context.Context, sess Session, empID string, file Upload) (cand *database.Candidate, err error) {
	defer metrics.ObserveTransition("submitResume", &err)

	if err = requireRole(sess, auth.RoleEmployee, auth.RoleDelivery, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if sess.Role == auth.RoleEmployee && sess.EmpID != empID {
		return nil, Authorizationf("employees may only submit their own resume")
	}

	loaded, err := e.loadCandidate(ctx, empID)
	if err != nil {
		return nil, err
	}

	ref, err := e.uploadAttachment(ctx, loaded.EmpID, file)
	if err != nil {
		return nil, err
	}

	if err = e.db.WithContext(ctx).
		Model(&database.Candidate{}).
		Where("id = ?", loaded.ID).
		Update("resume_ref", ref).Error; err != nil {
		return nil, fmt.Errorf("update resume ref: %w", err)
	}

	loaded.ResumeRef = ref
	e.notifyCandidate(ctx, loaded.ID)
	return loaded, nil
}

// MarkTerminal records an explicit terminal decision (rejected or
// withdrawn) for a candidate that has not been deployed.
func (e *Engine) MarkTerminal(ctx context.Context, sess Session, empID, state string) (cand *database.Candidate, err error) {
	defer metrics.ObserveTransition("markTerminal", &err)

	if err = requireRole(sess, auth.RoleSales, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if state != database.TerminalRejected && state != database.TerminalWithdrawn {
		return nil, Validationf("state", "state must be rejected or withdrawn")
	}

	loaded, err := e.loadCandidate(ctx, empID)
	if err != nil {
		return nil, err
	}
	if DeriveStage(*loaded) == StageDeployed {
		return nil, StaleStatef("candidate %s is already deployed", empID)
	}

	if err = e.db.WithContext(ctx).
		Model(&database.Candidate{}).
		Where("id = ?", loaded.ID).
		Update("terminal_state", state).Error; err != nil {
		return nil, fmt.Errorf("update terminal state: %w", err)
	}

	loaded.TerminalState = state
	e.notifyCandidate(ctx, loaded.ID)
	return loaded, nil
}

// CandidateView pairs a candidate record with its derived stage and level.
type CandidateView struct {
	Candidate database.Candidate
	Stage     Stage
	Level     *int
}

// GetCandidate loads a candidate with all interviews and derives its stage.
func (e *Engine) GetCandidate(ctx context.Context, empID string) (*CandidateView, error) {
	cand, err := e.loadCandidate(ctx, empID)
	if err != nil {
		return nil, err
	}
	return &CandidateView{
		Candidate: *cand,
		Stage:     DeriveStage(*cand),
		Level:     Level(*cand),
	}, nil
}

// GetClientInterviewsByCandidate returns the candidate's client interviews
// ordered by level.
func (e *Engine) GetClientInterviewsByCandidate(ctx context.Context, empID string) ([]database.ClientInterview, error) {
	cand, err := e.loadCandidate(ctx, empID)
	if err != nil {
		return nil, err
	}
	var interviews []database.ClientInterview
	if err := e.db.WithContext(ctx).
		Where("candidate_id = ?", cand.ID).
		Order("level ASC, scheduled_at ASC").
		Find(&interviews).Error; err != nil {
		return nil, fmt.Errorf("list client interviews: %w", err)
	}
	return interviews, nil
}

func (e *Engine) loadCandidate(ctx context.Context, empID string) (*database.Candidate, error) {
	empID = strings.TrimSpace(empID)
	if empID == "" {
		return nil, Validationf("empId", "employee id is required")
	}

	var cand database.Candidate
	err := e.db.WithContext(ctx).
		Preload("MockInterviews").
		Preload("ClientInterviews").
		Where("emp_id = ?", empID).
		First(&cand).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, NotFoundf("candidate %s not found", empID)
	case err != nil:
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	return &cand, nil
}

// liveCandidate loads a candidate by primary key and rejects terminal
// ones, so no transition mutates records behind a closed pipeline.
func (e *Engine) liveCandidate(ctx context.Context, candidateID uint) (*database.Candidate, error) {
	var cand database.Candidate
	if err := e.db.WithContext(ctx).First(&cand, candidateID).Error; err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	if cand.TerminalState != "" {
		return nil, StaleStatef("candidate %s is terminal (%s)", cand.EmpID, cand.TerminalState)
	}
	return &cand, nil
}

func (e *Engine) firstOr(ctx context.Context, dest any, id uint, label string) error {
	err := e.db.WithContext(ctx).First(dest, id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFoundf("%s %d not found", label, id)
	case err != nil:
		return fmt.Errorf("load %s: %w", label, err)
	}
	return nil
}

// StoreDocument validates and stores a standalone document under the given
// key prefix, outside any interview record. Used for job description files.
func (e *Engine) StoreDocument(ctx context.Context, prefix string, file Upload) (string, error) {
	ext, ok := allowedMIME[strings.ToLower(strings.TrimSpace(file.ContentType))]
	if !ok {
		return "", UnsupportedFileType(file.ContentType)
	}
	if file.Reader == nil {
		return "", Validationf("file", "attachment content is missing")
	}
	if err := e.scanUpload(ctx, &file); err != nil {
		return "", err
	}

	objectKey := path.Join(prefix, uuid.NewString()+ext)
	if _, err := e.store.UploadFile(ctx, objectKey, file.Reader, file.Size, file.ContentType); err != nil {
		return "", DependencyUnavailable("upload document", err)
	}
	return objectKey, nil
}

// uploadAttachment validates the MIME type and pushes the bytes to the
// object store, returning the opaque reference. Upload failures surface as
// DependencyUnavailable so the transition aborts with no partial record.
func (e *Engine) uploadAttachment(ctx context.Context, empID string, file Upload) (string, error) {
	ext, ok := allowedMIME[strings.ToLower(strings.TrimSpace(file.ContentType))]
	if !ok {
		return "", UnsupportedFileType(file.ContentType)
	}
	if file.Reader == nil {
		return "", Validationf("file", "attachment content is missing")
	}
	if err := e.scanUpload(ctx, &file); err != nil {
		return "", err
	}

	objectKey := path.Join("attachments", empID, uuid.NewString()+ext)
	if _, err := e.store.UploadFile(ctx, objectKey, file.Reader, file.Size, file.ContentType); err != nil {
		return "", DependencyUnavailable("upload attachment", err)
	}
	return objectKey, nil
}

// scanUpload screens the content when a scanner is configured. The reader
// is buffered so the bytes can still be stored after a clean scan.
func (e *Engine) scanUpload(ctx context.Context, file *Upload) error {
	if e.scanner == nil {
		return nil
	}

	data, err := io.ReadAll(file.Reader)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	if err := e.scanner.Scan(ctx, bytes.NewReader(data)); err != nil {
		if errors.Is(err, scan.ErrInfected) {
			return Validationf("file", "malicious content detected")
		}
		return DependencyUnavailable("scan attachment", err)
	}

	file.Reader = bytes.NewReader(data)
	file.Size = int64(len(data))
	return nil
}

// notifyCandidate reloads the candidate and hands its fresh state to the
// notifier. View updates are best-effort; failures are logged, never
// propagated into the transition result.
func (e *Engine) notifyCandidate(ctx context.Context, candidateID uint) {
	if e.notifier == nil {
		return
	}

	var cand database.Candidate
	if err := e.db.WithContext(ctx).
		Preload("MockInterviews").
		Preload("ClientInterviews").
		First(&cand, candidateID).Error; err != nil {
		e.logger.Error("reload candidate for notify failed",
			slog.Uint64("candidate_id", uint64(candidateID)),
			slog.Any("error", err),
		)
		return
	}

	if err := e.notifier.CandidateChanged(ctx, cand, DeriveStage(cand)); err != nil {
		e.logger.Error("candidate change notification failed",
			slog.String("emp_id", cand.EmpID),
			slog.Any("error", err),
		)
	}
}

func requireRole(sess Session, allowed ...auth.Role) error {
	for _, role := range allowed {
		if sess.Role == role {
			return nil
		}
	}
	return Authorizationf("role %s is not permitted to perform this transition", sess.Role)
}

// validateClientScore enforces the 0.0..10.0 range with one decimal place.
func validateClientScore(field string, score float64) error {
	if score < 0 || score > 10 {
		return Validationf(field, "score must be within 0.0..10.0")
	}
	scaled := score * 10
	if math.Abs(scaled-math.Round(scaled)) > 1e-9 {
		return Validationf(field, "score accepts at most one decimal place")
	}
	return nil
}
