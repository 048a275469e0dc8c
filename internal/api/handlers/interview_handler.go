package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepdeck/prepdeck/internal/models"
	"github.com/prepdeck/prepdeck/internal/services"
	"github.com/prepdeck/prepdeck/internal/utils"
)

type InterviewHandler struct {
	svc services.InterviewService
}

func NewInterviewHandler(svc services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type SetupRequest struct {
	JobTitle       string `json:"job_title" binding:"required"`
	Company        string `json:"company" binding:"required"`
	JobDescription string `json:"job_description" binding:"required"`
	ResumeText     string `json:"resume_text" binding:"required"`
}

type SetupResponse struct {
	SessionID string                     `json:"session_id"`
	Status    models.SessionStatus       `json:"status"`
	Questions []models.InterviewQuestion `json:"questions"`
	CreatedAt string                     `json:"created_at"`
}

func (h *InterviewHandler) Setup(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Setup", "invalid request body", err))
		return
	}

	sess, err := h.svc.BeginSetup(c.Request.Context(), userID, models.SessionConfig{
		JobTitle:       req.JobTitle,
		Company:        req.Company,
		JobDescription: req.JobDescription,
		ResumeText:     req.ResumeText,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SetupResponse{
		SessionID: sess.SessionID,
		Status:    sess.Status,
		Questions: sess.Questions,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *InterviewHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	// basic authorization
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "InterviewHandler.Get", "forbidden", nil))
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *InterviewHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessions, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

type AnswerRequest struct {
	Transcript      string `json:"transcript" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
	AudioURL        string `json:"audio_url"`
	VideoURL        string `json:"video_url"`
}

func (h *InterviewHandler) Answer(c *gin.Context) {
	sess, ok := h.authorize(c, "InterviewHandler.Answer")
	if !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Answer", "invalid request body", err))
		return
	}

	response, err := h.svc.RecordAnswer(c.Request.Context(), sess.SessionID, services.AnswerInput{
		Transcript:      req.Transcript,
		DurationSeconds: req.DurationSeconds,
		AudioURL:        req.AudioURL,
		VideoURL:        req.VideoURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

type AdvanceRequest struct {
	Delta int `json:"delta"`
}

func (h *InterviewHandler) Advance(c *gin.Context) {
	sess, ok := h.authorize(c, "InterviewHandler.Advance")
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Advance", "invalid request body", err))
		return
	}
	if req.Delta == 0 {
		req.Delta = 1
	}

	index, err := h.svc.Advance(c.Request.Context(), sess.SessionID, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"current_index": index})
}

func (h *InterviewHandler) Complete(c *gin.Context) {
	sess, ok := h.authorize(c, "InterviewHandler.Complete")
	if !ok {
		return
	}

	completed, err := h.svc.Complete(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, completed)
}

func (h *InterviewHandler) Reset(c *gin.Context) {
	sess, ok := h.authorize(c, "InterviewHandler.Reset")
	if !ok {
		return
	}

	h.svc.Reset(sess.SessionID)
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// History returns the caller's archived responses across all sessions.
func (h *InterviewHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	rows, err := h.svc.History(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"responses": rows})
}

// SessionResponses returns one session's archived responses.
func (h *InterviewHandler) SessionResponses(c *gin.Context) {
	sess, ok := h.authorize(c, "InterviewHandler.SessionResponses")
	if !ok {
		return
	}

	rows, err := h.svc.ArchivedResponses(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"responses": rows})
}

func (h *InterviewHandler) Report(c *gin.Context) {
	sess, ok := h.authorize(c, "InterviewHandler.Report")
	if !ok {
		return
	}

	report, err := h.svc.Report(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("download") == "1" {
		c.Header("Content-Disposition", `attachment; filename="interview-report-`+sess.SessionID+`.json"`)
	}
	c.JSON(http.StatusOK, report)
}

// authorize loads the session from the path param and checks ownership.
func (h *InterviewHandler) authorize(c *gin.Context, op string) (*models.Session, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}

	sessionID := c.Param("session_id")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, false
	}
	return sess, true
}
