// Package api exposes the interview engine over HTTP: session creation,
// the synchronous message loop and its SSE streaming variant.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aiinterviewer/internal/interview"
	"aiinterviewer/internal/models"
)

const streamTimeout = 2 * time.Minute

// Handler wires HTTP routes to the interview service.
type Handler struct {
	interviews *interview.Service
	log        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHandler constructs a Handler instance.
func NewHandler(service *interview.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		interviews: service,
		log:        log,
		locks:      make(map[string]*sync.Mutex),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/sessions", h.createSession)
	api.GET("/sessions/:id", h.getSession)
	api.GET("/sessions/:id/status", h.getStatus)
	api.POST("/sessions/:id/messages", h.postMessage)
	api.POST("/sessions/:id/messages/stream", h.postMessageStream)
}

// sessionLock returns the mutex serializing message processing for one
// session. Locks are kept for the process lifetime; session volume is
// bounded by the message cap, not by lock churn.
func (h *Handler) sessionLock(id string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[id] = lock
	}
	return lock
}

type createSessionRequest struct {
	Mode                       string `json:"mode"`
	VacancyURL                 string `json:"vacancy_url"`
	VacancyText                string `json:"vacancy_text"`
	RoleName                   string `json:"role_name"`
	NumQuestions               int    `json:"num_questions"`
	InterviewFormat            string `json:"interview_format"`
	CommunicationStylePreset   string `json:"communication_style_preset"`
	CommunicationStyleFreeform string `json:"communication_style_freeform"`
	PlanPreferences            string `json:"plan_preferences"`
}

type messageRequest struct {
	Text string `json:"text"`
	// Audio is base64-encoded WAV. Exactly one of Text and Audio is set.
	Audio string `json:"audio"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type replyResponse struct {
	SessionID         string         `json:"session_id"`
	Message           messagePayload `json:"message"`
	Status            string         `json:"status"`
	InterviewComplete bool           `json:"interview_complete"`
}

func toMessagePayload(m *models.Message) messagePayload {
	return messagePayload{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func toReplyResponse(r *interview.Reply) replyResponse {
	return replyResponse{
		SessionID:         r.SessionID,
		Message:           toMessagePayload(r.Message),
		Status:            string(r.Status),
		InterviewComplete: r.InterviewComplete,
	}
}

func sessionResponse(s *models.Session) gin.H {
	visible := s.VisibleMessages()
	messages := make([]messagePayload, 0, len(visible))
	for _, m := range visible {
		messages = append(messages, toMessagePayload(m))
	}
	return gin.H{
		"id":               s.ID,
		"status":           string(s.Status),
		"mode":             string(s.Mode),
		"subject":          s.Subject(),
		"num_questions":    s.NumQuestions,
		"interview_format": string(s.InterviewFormat),
		"interview_plan":   s.InterviewPlan,
		"started_at":       s.StartedAt,
		"ended_at":         s.EndedAt,
		"created_at":       s.CreatedAt,
		"messages":         messages,
	}
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	session, err := h.interviews.CreateSession(c.Request.Context(), interview.CreateParams{
		Mode:                       req.Mode,
		VacancyURL:                 req.VacancyURL,
		VacancyText:                req.VacancyText,
		RoleName:                   req.RoleName,
		NumQuestions:               req.NumQuestions,
		InterviewFormat:            req.InterviewFormat,
		CommunicationStylePreset:   req.CommunicationStylePreset,
		CommunicationStyleFreeform: req.CommunicationStyleFreeform,
		PlanPreferences:            req.PlanPreferences,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (h *Handler) getSession(c *gin.Context) {
	session, err := h.interviews.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *Handler) getStatus(c *gin.Context) {
	status, err := h.interviews.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": string(status)})
}

func (h *Handler) bindInbound(c *gin.Context) (interview.Inbound, bool) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return interview.Inbound{}, false
	}
	in := interview.Inbound{Text: req.Text}
	if strings.TrimSpace(req.Audio) != "" {
		audio, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "audio must be base64-encoded"})
			return interview.Inbound{}, false
		}
		in.Audio = audio
	}
	return in, true
}

func (h *Handler) postMessage(c *gin.Context) {
	sessionID := c.Param("id")
	in, ok := h.bindInbound(c)
	if !ok {
		return
	}

	lock := h.sessionLock(sessionID)
	if !lock.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "another message is being processed for this session"})
		return
	}
	defer lock.Unlock()

	reply, err := h.interviews.ProcessMessage(c.Request.Context(), sessionID, in)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReplyResponse(reply))
}

func (h *Handler) postMessageStream(c *gin.Context) {
	sessionID := c.Param("id")
	in, ok := h.bindInbound(c)
	if !ok {
		return
	}

	lock := h.sessionLock(sessionID)
	if !lock.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "another message is being processed for this session"})
		return
	}
	defer lock.Unlock()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	streamCtx, cancel := context.WithTimeout(c.Request.Context(), streamTimeout)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{"session_id": sessionID}); err != nil {
		return
	}

	reply, err := h.interviews.ProcessMessageStream(streamCtx, sessionID, in, func(delta string) error {
		return sendEvent("stream", gin.H{"content": delta})
	})
	if err != nil {
		h.log.Warn("stream turn failed", zap.String("session_id", sessionID), zap.Error(err))
		_ = sendEvent("error", gin.H{"message": publicError(err)})
		return
	}
	_ = sendEvent("done", toReplyResponse(reply))
}

// renderError maps domain errors to HTTP statuses.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": publicError(err)})
	case errors.Is(err, models.ErrSessionCompleted):
		c.JSON(http.StatusGone, gin.H{"error": publicError(err)})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": publicError(err)})
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrUnsupportedAudioFormat),
		errors.Is(err, models.ErrFileTooLarge),
		errors.Is(err, models.ErrVacancyNotParsable):
		c.JSON(http.StatusBadRequest, gin.H{"error": publicError(err)})
	default:
		h.log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func publicError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
