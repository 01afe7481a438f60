package api

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pipetrack/internal/api/middleware"
	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
	"pipetrack/internal/scoring"
)

// DeliveryHandler serves the delivery-team surface: mock interview
// scheduling, feedback, hand-off to sales and performance views.
type DeliveryHandler struct {
	db      *gorm.DB
	engine  *pipeline.Engine
	scoring *scoring.Service
	logger  *slog.Logger
}

// NewDeliveryHandler builds the handler.
func NewDeliveryHandler(db *gorm.DB, engine *pipeline.Engine, scoringService *scoring.Service, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{db: db, engine: engine, scoring: scoringService, logger: logger}
}

// sessionFromContext assembles the engine session for the caller.
func sessionFromContext(c *gin.Context) (pipeline.Session, bool) {
	role, empID, ok := sessionRole(c)
	if !ok {
		return pipeline.Session{}, false
	}
	userID, _ := userIDFromContext(c)
	return pipeline.Session{
		Role:          role,
		UserID:        userID,
		EmpID:         empID,
		CorrelationID: middleware.GetCorrelationID(c),
	}, true
}

// openUpload turns a multipart file header into an engine upload. The
// returned closer must be closed after the engine call.
func openUpload(header *multipart.FileHeader) (*pipeline.Upload, multipart.File, error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &pipeline.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
		Size:        header.Size,
	}, file, nil
}

func parseScheduleDate(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseExpectedVersion reads the optional optimistic-concurrency field;
// absent means "no caller-side staleness check".
func parseExpectedVersion(raw string) (int64, bool) {
	if raw == "" {
		return -1, true
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 0 {
		return 0, false
	}
	return version, true
}

// ScheduleMock creates a mock interview from a multipart form.
func (h *DeliveryHandler) ScheduleMock(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	scheduledAt, ok := parseScheduleDate(c.PostForm("date"))
	if !ok {
		BadRequest(c, "date must be an ISO timestamp")
		return
	}

	in := pipeline.ScheduleMockInput{
		EmpID:         c.PostForm("empId"),
		ScheduledAt:   scheduledAt,
		InterviewerID: c.PostForm("interviewerId"),
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "multipart form is required")
		return
	}
	var closers []multipart.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	for _, header := range form.File["files"] {
		upload, file, err := openUpload(header)
		if err != nil {
			BadRequest(c, "unreadable attachment "+header.Filename)
			return
		}
		closers = append(closers, file)
		in.Attachments = append(in.Attachments, *upload)
	}

	record, err := h.engine.ScheduleMock(c.Request.Context(), sess, in)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// SubmitFeedback completes a mock interview with scores and feedback.
func (h *DeliveryHandler) SubmitFeedback(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	interviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid interview id")
		return
	}

	technicalScore, err := strconv.Atoi(c.PostForm("technicalScore"))
	if err != nil {
		BadRequest(c, "technicalScore must be an integer")
		return
	}
	communicationScore, err := strconv.Atoi(c.PostForm("communicationScore"))
	if err != nil {
		BadRequest(c, "communicationScore must be an integer")
		return
	}
	expectedVersion, ok := parseExpectedVersion(c.PostForm("expectedVersion"))
	if !ok {
		BadRequest(c, "expectedVersion must be a non-negative integer")
		return
	}

	in := pipeline.MockFeedbackInput{
		InterviewID:           uint(interviewID),
		TechnicalFeedback:     c.PostForm("technicalFeedback"),
		CommunicationFeedback: c.PostForm("communicationFeedback"),
		TechnicalScore:        technicalScore,
		CommunicationScore:    communicationScore,
		SentToSales:           c.PostForm("sentToSales") == "true",
		ExpectedVersion:       expectedVersion,
	}

	if header, err := c.FormFile("feedbackFile"); err == nil {
		upload, file, err := openUpload(header)
		if err != nil {
			BadRequest(c, "unreadable feedback file")
			return
		}
		defer file.Close()
		in.FeedbackFile = upload
	}

	record, err := h.engine.SubmitMockFeedback(c.Request.Context(), sess, in)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// SendToSales forwards a completed mock interview to the sales queue.
func (h *DeliveryHandler) SendToSales(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}
	interviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid interview id")
		return
	}

	record, err := h.engine.SendToSales(c.Request.Context(), sess, uint(interviewID))
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateStatus marks a scheduled mock interview as conducted.
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}
	interviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid interview id")
		return
	}

	record, err := h.engine.UpdateInterviewStatus(c.Request.Context(), sess, uint(interviewID))
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type mockInterviewRow struct {
	database.MockInterview
	EmpID        string `json:"empId"`
	EmployeeName string `json:"employeeName"`
}

func (h *DeliveryHandler) listMockInterviews(c *gin.Context, status string) {
	var interviews []database.MockInterview
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Candidate").
		Where("status = ?", status).
		Order("scheduled_at ASC").
		Find(&interviews).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list mock interviews failed", slog.Any("error", err))
		Internal(c)
		return
	}

	rows := make([]mockInterviewRow, 0, len(interviews))
	for _, mi := range interviews {
		rows = append(rows, mockInterviewRow{
			MockInterview: mi,
			EmpID:         mi.Candidate.EmpID,
			EmployeeName:  mi.Candidate.Name,
		})
	}
	c.JSON(http.StatusOK, rows)
}

// UpcomingInterviews lists scheduled mock interviews ordered by date.
func (h *DeliveryHandler) UpcomingInterviews(c *gin.Context) {
	h.listMockInterviews(c, database.InterviewScheduled)
}

// CompletedInterviews lists completed mock interviews.
func (h *DeliveryHandler) CompletedInterviews(c *gin.Context) {
	h.listMockInterviews(c, database.InterviewCompleted)
}

// Performance returns the mock interview leaderboard.
func (h *DeliveryHandler) Performance(c *gin.Context) {
	rows, err := h.scoring.Leaderboard(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("leaderboard failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// PerformanceAverages returns group score averages, filterable by
// technology and resourceType ("all" or empty passes everything).
func (h *DeliveryHandler) PerformanceAverages(c *gin.Context) {
	averages, err := h.scoring.Averages(c.Request.Context(), c.Query("technology"), c.Query("resourceType"))
	if err != nil {
		middleware.LoggerFromContext(c).Error("averages failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, averages)
}

type candidateRow struct {
	EmpID        string         `json:"empId"`
	Name         string         `json:"name"`
	Technology   string         `json:"technology"`
	ResourceType string         `json:"resourceType"`
	Stage        pipeline.Stage `json:"stage"`
	Level        *int           `json:"level,omitempty"`
	HasResume    bool           `json:"hasResume"`
}

// Candidates lists every active candidate with its derived stage.
func (h *DeliveryHandler) Candidates(c *gin.Context) {
	var candidates []database.Candidate
	if err := h.db.WithContext(c.Request.Context()).
		Preload("MockInterviews").
		Preload("ClientInterviews").
		Order("emp_id ASC").
		Find(&candidates).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list candidates failed", slog.Any("error", err))
		Internal(c)
		return
	}

	rows := make([]candidateRow, 0, len(candidates))
	for _, cand := range candidates {
		rows = append(rows, candidateRow{
			EmpID:        cand.EmpID,
			Name:         cand.Name,
			Technology:   cand.Technology,
			ResourceType: cand.ResourceType,
			Stage:        pipeline.DeriveStage(cand),
			Level:        pipeline.Level(cand),
			HasResume:    cand.ResumeRef != "",
		})
	}
	c.JSON(http.StatusOK, rows)
}

// Candidate returns one candidate with its derived stage and interviews.
func (h *DeliveryHandler) Candidate(c *gin.Context) {
	view, err := h.engine.GetCandidate(c.Request.Context(), c.Param("empId"))
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidate": view.Candidate,
		"stage":     view.Stage,
		"level":     view.Level,
	})
}
