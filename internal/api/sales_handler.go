package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pipetrack/internal/api/middleware"
	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
	"pipetrack/internal/storage"
	"pipetrack/internal/views"
)

const presignedURLTTL = 15 * time.Minute

// SalesHandler serves the sales-team surface: the hand-off queue, client
// interview scheduling and results, clients and job descriptions.
type SalesHandler struct {
	db         *gorm.DB
	engine     *pipeline.Engine
	dispatcher *views.Dispatcher
	storage    *storage.Client
	logger     *slog.Logger
}

// NewSalesHandler builds the handler.
func NewSalesHandler(db *gorm.DB, engine *pipeline.Engine, dispatcher *views.Dispatcher, storageClient *storage.Client, logger *slog.Logger) *SalesHandler {
	return &SalesHandler{db: db, engine: engine, dispatcher: dispatcher, storage: storageClient, logger: logger}
}

// Queue lists candidates whose latest mock interview was forwarded to
// sales, read from the derived view.
func (h *SalesHandler) Queue(c *gin.Context) {
	ctx := c.Request.Context()
	empIDs, err := h.dispatcher.SalesQueue(ctx)
	if err != nil {
		middleware.LoggerFromContext(c).Error("sales queue read failed", slog.Any("error", err))
		Internal(c)
		return
	}

	rows := make([]candidateRow, 0, len(empIDs))
	for _, empID := range empIDs {
		view, err := h.engine.GetCandidate(ctx, empID)
		if err != nil {
			// View member with no backing row; the next recompute drops it.
			if pipeline.IsKind(err, pipeline.KindNotFound) {
				continue
			}
			PipelineError(c, err)
			return
		}
		rows = append(rows, candidateRow{
			EmpID:        view.Candidate.EmpID,
			Name:         view.Candidate.Name,
			Technology:   view.Candidate.Technology,
			ResourceType: view.Candidate.ResourceType,
			Stage:        view.Stage,
			Level:        view.Level,
			HasResume:    view.Candidate.ResumeRef != "",
		})
	}
	c.JSON(http.StatusOK, rows)
}

// ScheduleClientInterview creates a leveled client interview from a
// multipart form with exactly one attachment.
func (h *SalesHandler) ScheduleClientInterview(c *gin.Context) {
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
	level, err := strconv.Atoi(c.PostForm("level"))
	if err != nil {
		BadRequest(c, "level must be an integer")
		return
	}

	in := pipeline.ScheduleClientInterviewInput{
		EmpID:               c.PostForm("empId"),
		ClientName:          c.PostForm("client"),
		Level:               level,
		JobDescriptionTitle: c.PostForm("jobDescriptionTitle"),
		MeetingLink:         c.PostForm("meetingLink"),
		InterviewerEmail:    c.PostForm("interviewerEmail"),
		ScheduledAt:         scheduledAt,
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "multipart form is required")
		return
	}
	headers := form.File["file"]
	if len(headers) != 1 {
		BadRequest(c, "exactly one attachment is required")
		return
	}
	upload, file, err := openUpload(headers[0])
	if err != nil {
		BadRequest(c, "unreadable attachment")
		return
	}
	defer file.Close()
	in.Attachment = upload

	record, err := h.engine.ScheduleClientInterview(c.Request.Context(), sess, in)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// UpdateClientInterview records the result, feedback and scores of a
// client interview.
func (h *SalesHandler) UpdateClientInterview(c *gin.Context) {
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

	technicalScore, err := strconv.ParseFloat(c.PostForm("technicalScore"), 64)
	if err != nil {
		BadRequest(c, "technicalScore must be a number")
		return
	}
	communicationScore, err := strconv.ParseFloat(c.PostForm("communicationScore"), 64)
	if err != nil {
		BadRequest(c, "communicationScore must be a number")
		return
	}
	expectedVersion, ok := parseExpectedVersion(c.PostForm("expectedVersion"))
	if !ok {
		BadRequest(c, "expectedVersion must be a non-negative integer")
		return
	}

	in := pipeline.ClientFeedbackInput{
		InterviewID:        uint(interviewID),
		Result:             c.PostForm("result"),
		Feedback:           c.PostForm("feedback"),
		TechnicalScore:     technicalScore,
		CommunicationScore: communicationScore,
		DeployedStatus:     c.PostForm("deployedStatus") == "true",
		ExpectedVersion:    expectedVersion,
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

	record, err := h.engine.UpdateClientInterview(c.Request.Context(), sess, in)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ClientInterviews lists a candidate's client interviews ordered by level.
func (h *SalesHandler) ClientInterviews(c *gin.Context) {
	empID := c.Query("empId")
	if empID == "" {
		BadRequest(c, "empId query parameter is required")
		return
	}
	interviews, err := h.engine.GetClientInterviewsByCandidate(c.Request.Context(), empID)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, interviews)
}

// ClientInterview returns a single client interview.
func (h *SalesHandler) ClientInterview(c *gin.Context) {
	interviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid interview id")
		return
	}

	var record database.ClientInterview
	if err := h.db.WithContext(c.Request.Context()).First(&record, uint(interviewID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "client interview not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load client interview failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, record)
}

// FeedbackFile returns a presigned download URL for the interview's
// feedback document.
func (h *SalesHandler) FeedbackFile(c *gin.Context) {
	interviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid interview id")
		return
	}

	ctx := c.Request.Context()
	var record database.ClientInterview
	if err := h.db.WithContext(ctx).First(&record, uint(interviewID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "client interview not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load client interview failed", slog.Any("error", err))
		Internal(c)
		return
	}
	if record.FeedbackFileRef == "" {
		NotFound(c, "no feedback file attached")
		return
	}

	url, err := h.storage.GeneratePresignedURL(ctx, record.FeedbackFileRef, presignedURLTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign feedback file failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(presignedURLTTL.Seconds())})
}

type markTerminalRequest struct {
	State string `json:"state" binding:"required"`
}

// MarkTerminal records a rejected or withdrawn decision for a candidate.
func (h *SalesHandler) MarkTerminal(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}
	var req markTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cand, err := h.engine.MarkTerminal(c.Request.Context(), sess, c.Param("empId"), req.State)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, cand)
}

// Deployed lists employee ids of deployed candidates from the derived view.
func (h *SalesHandler) Deployed(c *gin.Context) {
	empIDs, err := h.dispatcher.Deployed(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("deployed view read failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"empIds": empIDs})
}

type createClientRequest struct {
	Name            string   `json:"name" binding:"required,max=128"`
	ContactEmail    string   `json:"contactEmail" binding:"omitempty,email"`
	ActivePositions int      `json:"activePositions" binding:"gte=0"`
	Technologies    []string `json:"technologies" binding:"required,min=1"`
}

// CreateClient registers a hiring client.
func (h *SalesHandler) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	for _, technology := range req.Technologies {
		if !slices.Contains(database.Technologies, technology) {
			BadRequest(c, "unknown technology "+technology)
			return
		}
	}

	techJSON, err := json.Marshal(req.Technologies)
	if err != nil {
		BadRequest(c, "invalid technologies list")
		return
	}

	client := database.Client{
		Name:            req.Name,
		ContactEmail:    req.ContactEmail,
		ActivePositions: req.ActivePositions,
		Technologies:    techJSON,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "client name already registered")
			return
		}
		middleware.LoggerFromContext(c).Error("create client failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// Clients lists registered hiring clients.
func (h *SalesHandler) Clients(c *gin.Context) {
	var clients []database.Client
	if err := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&clients).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list clients failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// CreateJobDescription records an open position; the optional document is
// validated and stored the same way interview attachments are.
func (h *SalesHandler) CreateJobDescription(c *gin.Context) {
	receivedDate, ok := parseScheduleDate(c.PostForm("receivedDate"))
	if !ok {
		BadRequest(c, "receivedDate must be an ISO date")
		return
	}
	deadline, ok := parseScheduleDate(c.PostForm("deadline"))
	if !ok {
		BadRequest(c, "deadline must be an ISO date")
		return
	}
	if !deadline.After(receivedDate) {
		BadRequest(c, "deadline must be after receivedDate")
		return
	}

	jd := database.JobDescription{
		Title:        c.PostForm("title"),
		ClientName:   c.PostForm("client"),
		Technology:   c.PostForm("technology"),
		ResourceType: c.PostForm("resourceType"),
		ReceivedDate: receivedDate,
		Deadline:     deadline,
		Description:  c.PostForm("description"),
	}
	if jd.Title == "" {
		BadRequest(c, "title is required")
		return
	}
	if jd.ClientName == "" {
		BadRequest(c, "client is required")
		return
	}

	ctx := c.Request.Context()
	if header, err := c.FormFile("file"); err == nil {
		upload, file, err := openUpload(header)
		if err != nil {
			BadRequest(c, "unreadable attachment")
			return
		}
		defer file.Close()

		ref, err := h.engine.StoreDocument(ctx, "job-descriptions", *upload)
		if err != nil {
			PipelineError(c, err)
			return
		}
		jd.FileRef = ref
	}

	if err := h.db.WithContext(ctx).Create(&jd).Error; err != nil {
		middleware.LoggerFromContext(c).Error("create job description failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusCreated, jd)
}

// JobDescriptions lists open positions, optionally filtered by client.
func (h *SalesHandler) JobDescriptions(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("deadline ASC")
	if client := c.Query("client"); client != "" {
		query = query.Where("client_name = ?", client)
	}

	var jds []database.JobDescription
	if err := query.Find(&jds).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list job descriptions failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, jds)
}

// DownloadJobDescription returns a presigned URL for the stored document.
func (h *SalesHandler) DownloadJobDescription(c *gin.Context) {
	jdID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid job description id")
		return
	}

	ctx := c.Request.Context()
	var jd database.JobDescription
	if err := h.db.WithContext(ctx).First(&jd, uint(jdID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job description not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load job description failed", slog.Any("error", err))
		Internal(c)
		return
	}
	if jd.FileRef == "" {
		NotFound(c, "no document attached")
		return
	}

	url, err := h.storage.GeneratePresignedURL(ctx, jd.FileRef, presignedURLTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign job description failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(presignedURLTTL.Seconds())})
}

// DeleteJobDescription removes an open position and its stored document.
func (h *SalesHandler) DeleteJobDescription(c *gin.Context) {
	jdID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "invalid job description id")
		return
	}

	ctx := c.Request.Context()
	var jd database.JobDescription
	if err := h.db.WithContext(ctx).First(&jd, uint(jdID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job description not found")
			return
		}
		middleware.LoggerFromContext(c).Error("load job description failed", slog.Any("error", err))
		Internal(c)
		return
	}

	if err := h.db.WithContext(ctx).Delete(&jd).Error; err != nil {
		middleware.LoggerFromContext(c).Error("delete job description failed", slog.Any("error", err))
		Internal(c)
		return
	}
	if jd.FileRef != "" {
		if err := h.storage.DeleteObject(ctx, jd.FileRef); err != nil {
			middleware.LoggerFromContext(c).Warn("delete job description document failed",
				slog.String("file_ref", jd.FileRef), slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}
