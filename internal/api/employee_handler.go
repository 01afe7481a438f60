package api

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pipetrack/internal/api/middleware"
	"pipetrack/internal/auth"
	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
	"pipetrack/internal/views"
)

// EmployeeHandler serves the employee self-service surface: own progress,
// resume upload, readiness lists and the shared question bank.
type EmployeeHandler struct {
	db         *gorm.DB
	engine     *pipeline.Engine
	dispatcher *views.Dispatcher
	logger     *slog.Logger
}

// NewEmployeeHandler builds the handler.
func NewEmployeeHandler(db *gorm.DB, engine *pipeline.Engine, dispatcher *views.Dispatcher, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{db: db, engine: engine, dispatcher: dispatcher, logger: logger}
}

// targetEmpID resolves which candidate the caller may read. Employees are
// pinned to their own record; staff roles may name any candidate.
func (h *EmployeeHandler) targetEmpID(c *gin.Context) (string, bool) {
	role, empID, ok := sessionRole(c)
	if !ok {
		return "", false
	}
	requested := c.Param("empId")
	if requested == "" {
		requested = c.Query("empId")
	}
	if role == auth.RoleEmployee {
		if requested != "" && requested != empID {
			return "", false
		}
		return empID, true
	}
	if requested == "" {
		return "", false
	}
	return requested, true
}

// Me returns the caller's candidate record with its derived stage.
func (h *EmployeeHandler) Me(c *gin.Context) {
	_, empID, ok := sessionRole(c)
	if !ok || empID == "" {
		Unauthorized(c, "unauthorized")
		return
	}

	view, err := h.engine.GetCandidate(c.Request.Context(), empID)
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

// Progress returns a candidate's derived stage and interview history.
func (h *EmployeeHandler) Progress(c *gin.Context) {
	empID, ok := h.targetEmpID(c)
	if !ok {
		Forbidden(c, "permission denied")
		return
	}

	view, err := h.engine.GetCandidate(c.Request.Context(), empID)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidate":        view.Candidate,
		"stage":            view.Stage,
		"level":            view.Level,
		"mockInterviews":   view.Candidate.MockInterviews,
		"clientInterviews": view.Candidate.ClientInterviews,
	})
}

// MockInterviews lists a candidate's mock interviews, newest first.
func (h *EmployeeHandler) MockInterviews(c *gin.Context) {
	empID, ok := h.targetEmpID(c)
	if !ok {
		Forbidden(c, "permission denied")
		return
	}

	view, err := h.engine.GetCandidate(c.Request.Context(), empID)
	if err != nil {
		PipelineError(c, err)
		return
	}

	var interviews []database.MockInterview
	if err := h.db.WithContext(c.Request.Context()).
		Where("candidate_id = ?", view.Candidate.ID).
		Order("scheduled_at DESC").
		Find(&interviews).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list mock interviews failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, interviews)
}

// ClientInterviews lists a candidate's client interviews ordered by level.
func (h *EmployeeHandler) ClientInterviews(c *gin.Context) {
	empID, ok := h.targetEmpID(c)
	if !ok {
		Forbidden(c, "permission denied")
		return
	}

	interviews, err := h.engine.GetClientInterviewsByCandidate(c.Request.Context(), empID)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, interviews)
}

// UploadResume stores the caller's resume through the transition engine.
func (h *EmployeeHandler) UploadResume(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	empID := c.PostForm("empId")
	if empID == "" {
		empID = sess.EmpID
	}

	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "resume file is required")
		return
	}
	upload, file, err := openUpload(header)
	if err != nil {
		BadRequest(c, "unreadable resume file")
		return
	}
	defer file.Close()

	cand, err := h.engine.SubmitResume(c.Request.Context(), sess, empID, *upload)
	if err != nil {
		PipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"empId": cand.EmpID, "resumeRef": cand.ResumeRef})
}

// Deployed lists employee ids of deployed candidates from the derived view.
func (h *EmployeeHandler) Deployed(c *gin.Context) {
	empIDs, err := h.dispatcher.Deployed(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("deployed view read failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"empIds": empIDs})
}

// ReadyForDeployment lists employee ids whose latest mock interview scores
// reach the readiness threshold, read from the derived view.
func (h *EmployeeHandler) ReadyForDeployment(c *gin.Context) {
	empIDs, err := h.dispatcher.ReadyForDeployment(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("ready view read failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"empIds": empIDs})
}

type addQuestionRequest struct {
	Technology string `json:"technology" binding:"required"`
	Question   string `json:"question" binding:"required,max=4000"`
}

// AddQuestion contributes a preparation question to the shared bank.
func (h *EmployeeHandler) AddQuestion(c *gin.Context) {
	var req addQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !slices.Contains(database.Technologies, req.Technology) {
		BadRequest(c, "unknown technology")
		return
	}

	_, empID, _ := sessionRole(c)
	question := database.InterviewQuestion{
		Technology: req.Technology,
		Question:   req.Question,
		AddedBy:    empID,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&question).Error; err != nil {
		middleware.LoggerFromContext(c).Error("create interview question failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusCreated, question)
}

// Questions lists preparation questions, optionally filtered by technology.
func (h *EmployeeHandler) Questions(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC")
	if technology := c.Query("technology"); technology != "" {
		query = query.Where("technology = ?", technology)
	}

	var questions []database.InterviewQuestion
	if err := query.Find(&questions).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list interview questions failed", slog.Any("error", err))
		Internal(c)
		return
	}
	c.JSON(http.StatusOK, questions)
}
