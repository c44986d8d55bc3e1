// Package interview contains the interview session engine: the state
// machine, the conversation memory and the orchestrator that binds LLM,
// transcription and persistence into one retry-safe message loop.
package interview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aiinterviewer/internal/models"
)

const (
	defaultNumQuestions = 5
	maxNumQuestions     = 50
)

// Completer is the LLM contract: one synchronous completion and one
// streaming completion, both stateless on the backend side.
type Completer interface {
	Complete(ctx context.Context, system string, history []*models.Message, user string) (string, error)
	CompleteStream(ctx context.Context, system string, history []*models.Message, user string, onDelta func(delta string) error) (string, error)
}

// Transcriber converts validated WAV audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// AudioValidator checks raw bytes before they are sent anywhere.
type AudioValidator interface {
	Validate(data []byte) error
}

// SubjectSource resolves the interview subject text at session creation.
type SubjectSource interface {
	ResolveVacancyText(ctx context.Context, vacancyURL, vacancyText string) (string, error)
	ResolveRoleText(ctx context.Context, roleName string) (string, error)
}

// Service orchestrates interview sessions. All state lives in the store;
// a Service instance itself is stateless and safe for concurrent use,
// though callers must serialize messages within one session.
type Service struct {
	store       SessionStore
	memory      *Memory
	llm         Completer
	subjects    SubjectSource
	audio       AudioValidator
	transcriber Transcriber

	numQuestions int
	log          *zap.Logger
}

// NewService wires the engine. defaultQuestions is used when a create
// request leaves the question count unset; zero falls back to the
// built-in default.
func NewService(store SessionStore, llm Completer, subjects SubjectSource, audio AudioValidator, transcriber Transcriber, defaultQuestions int, log *zap.Logger) *Service {
	if defaultQuestions <= 0 {
		defaultQuestions = defaultNumQuestions
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:        store,
		memory:       NewMemory(store),
		llm:          llm,
		subjects:     subjects,
		audio:        audio,
		transcriber:  transcriber,
		numQuestions: defaultQuestions,
		log:          log,
	}
}

// CreateParams is the raw create request before validation.
type CreateParams struct {
	Mode                       string
	VacancyURL                 string
	VacancyText                string
	RoleName                   string
	NumQuestions               int
	InterviewFormat            string
	CommunicationStylePreset   string
	CommunicationStyleFreeform string
	PlanPreferences            string
}

// CreateSession validates the request, resolves the subject text, drafts
// the interview plan and returns the new PLANNED session with the plan
// message in its log. The session row is persisted before the plan call
// so the id is a valid memory key from the first LLM interaction on.
func (s *Service) CreateSession(ctx context.Context, params CreateParams) (*models.Session, error) {
	sessionParams, err := s.validateCreate(ctx, params)
	if err != nil {
		return nil, err
	}

	session := models.NewSession(*sessionParams)
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	subject, err := s.subjectText(ctx, session)
	if err != nil {
		return nil, err
	}
	plan, err := s.llm.Complete(ctx, systemPrompt(session, subject), nil, planPrompt(session))
	if err != nil {
		return nil, fmt.Errorf("draft interview plan: %w", err)
	}

	session.InterviewPlan = plan
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save interview plan: %w", err)
	}
	msg, err := s.memory.Append(ctx, session.ID, models.RoleAssistant, plan, false)
	if err != nil {
		return nil, err
	}
	session.Messages = append(session.Messages, msg)
	session.MarkFlushed()

	s.log.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("mode", string(session.Mode)),
		zap.String("subject", session.Subject()))
	return session, nil
}

func (s *Service) validateCreate(ctx context.Context, params CreateParams) (*models.SessionParams, error) {
	mode, err := models.ParseMode(params.Mode)
	if err != nil {
		return nil, err
	}

	format := models.FormatTraining
	if params.InterviewFormat != "" {
		if format, err = models.ParseFormat(params.InterviewFormat); err != nil {
			return nil, err
		}
	}

	numQuestions := params.NumQuestions
	if numQuestions == 0 {
		numQuestions = s.numQuestions
	}
	if numQuestions < 1 || numQuestions > maxNumQuestions {
		return nil, fmt.Errorf("%w: num_questions must be between 1 and %d", models.ErrInvalidInput, maxNumQuestions)
	}

	result := models.SessionParams{
		Mode:                       mode,
		VacancyURL:                 strings.TrimSpace(params.VacancyURL),
		VacancyText:                strings.TrimSpace(params.VacancyText),
		RoleName:                   strings.TrimSpace(params.RoleName),
		NumQuestions:               numQuestions,
		InterviewFormat:            format,
		CommunicationStylePreset:   strings.TrimSpace(params.CommunicationStylePreset),
		CommunicationStyleFreeform: strings.TrimSpace(params.CommunicationStyleFreeform),
		PlanPreferences:            strings.TrimSpace(params.PlanPreferences),
	}

	switch mode {
	case models.ModeVacancy:
		if result.RoleName != "" {
			return nil, fmt.Errorf("%w: role name is not allowed in vacancy mode", models.ErrInvalidInput)
		}
		if (result.VacancyURL == "") == (result.VacancyText == "") {
			return nil, fmt.Errorf("%w: vacancy mode needs exactly one of vacancy url or vacancy text", models.ErrInvalidInput)
		}
		// Resolve once and keep the text so later turns never refetch.
		text, err := s.subjects.ResolveVacancyText(ctx, result.VacancyURL, result.VacancyText)
		if err != nil {
			return nil, err
		}
		result.VacancyText = text
	case models.ModeRole:
		if result.VacancyURL != "" || result.VacancyText != "" {
			return nil, fmt.Errorf("%w: vacancy fields are not allowed in role mode", models.ErrInvalidInput)
		}
		if result.RoleName == "" {
			return nil, fmt.Errorf("%w: role name is required in role mode", models.ErrInvalidInput)
		}
	}
	return &result, nil
}

func (s *Service) subjectText(ctx context.Context, session *models.Session) (string, error) {
	if session.Mode == models.ModeRole {
		return s.subjects.ResolveRoleText(ctx, session.RoleName)
	}
	return session.VacancyText, nil
}

// Inbound is one user turn: either text or WAV audio, never both.
type Inbound struct {
	Text  string
	Audio []byte
}

// Reply is the outcome of one processed turn.
type Reply struct {
	SessionID         string
	Message           *models.Message
	Status            models.SessionStatus
	InterviewComplete bool
}

// ProcessMessage runs one turn of the interview loop. All mutations stay
// in memory until the single Save at the end, so a failed call leaves the
// session untouched and the client can safely retry.
func (s *Service) ProcessMessage(ctx context.Context, sessionID string, in Inbound) (*Reply, error) {
	return s.process(ctx, sessionID, in, s.llm.Complete, nil)
}

// ProcessMessageStream behaves like ProcessMessage but streams the
// assistant reply through onDelta as chunks arrive. State changes are
// applied only after the stream completes; a mid-stream error discards
// the accumulated reply without touching the session.
func (s *Service) ProcessMessageStream(ctx context.Context, sessionID string, in Inbound, onDelta func(delta string) error) (*Reply, error) {
	complete := func(ctx context.Context, system string, history []*models.Message, user string) (string, error) {
		return s.llm.CompleteStream(ctx, system, history, user, onDelta)
	}
	return s.process(ctx, sessionID, in, complete, onDelta)
}

type completionFn func(ctx context.Context, system string, history []*models.Message, user string) (string, error)

func (s *Service) process(ctx context.Context, sessionID string, in Inbound, complete completionFn, onDelta func(delta string) error) (*Reply, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusCompleted {
		return nil, fmt.Errorf("%w: session %s", models.ErrSessionCompleted, sessionID)
	}
	// Cap check comes before input normalization so an over-limit session
	// never spends a transcription call.
	if len(session.Messages) >= MaxSessionMessages {
		return s.capComplete(ctx, session, onDelta)
	}

	text, err := s.normalizeInput(ctx, in)
	if err != nil {
		return nil, err
	}

	decision, err := Decide(session.Status, len(session.Messages), text)
	if err != nil {
		return nil, err
	}

	subject, err := s.subjectText(ctx, session)
	if err != nil {
		return nil, err
	}
	system := systemPrompt(session, subject)
	history, err := s.memory.Load(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	var replyText string
	switch decision.Action {
	case ActionRevisePlan:
		// The correction request itself is not persisted: only the revised
		// plan enters the log, and the plan field is overwritten.
		replyText, err = complete(ctx, system, history, revisePlanPrompt(text))
		if err == nil {
			session.InterviewPlan = replyText
		}

	case ActionStartInterview:
		now := time.Now().UTC()
		session.StartedAt = &now
		session.Status = models.StatusOngoing
		session.Append(models.RoleUser, decision.Trigger.Phrase(), true)
		replyText, err = complete(ctx, system, history, firstQuestionPrompt())

	case ActionAnswerQuestion:
		session.Append(models.RoleUser, text, false)
		replyText, err = complete(ctx, system, history, text)

	case ActionSwitchToFeedback:
		session.Status = models.StatusFeedback
		session.Append(models.RoleUser, decision.Trigger.Phrase(), true)
		replyText, err = complete(ctx, system, history, feedbackPrompt())

	case ActionFeedbackReply:
		session.Append(models.RoleUser, text, false)
		replyText, err = complete(ctx, system, history, text)

	case ActionForceComplete:
		session.Append(models.RoleUser, decision.Trigger.Phrase(), true)
		replyText, err = complete(ctx, system, history, finishPrompt())

	default:
		return nil, fmt.Errorf("unhandled action %s", decision.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("llm turn (%s): %w", decision.Action, err)
	}

	// The model signals a natural finish by ending its reply flow with the
	// completion phrase; an explicit finish command completes regardless.
	if decision.Next == models.StatusCompleted || models.TriggerComplete.Matches(replyText) {
		s.finish(session)
	}
	msg := session.Append(models.RoleAssistant, replyText, false)

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}

	s.log.Info("turn processed",
		zap.String("session_id", session.ID),
		zap.String("action", decision.Action.String()),
		zap.String("status", string(session.Status)))
	return &Reply{
		SessionID:         session.ID,
		Message:           msg,
		Status:            session.Status,
		InterviewComplete: session.Status == models.StatusCompleted,
	}, nil
}

func (s *Service) capComplete(ctx context.Context, session *models.Session, onDelta func(delta string) error) (*Reply, error) {
	if onDelta != nil {
		if err := onDelta(capReachedMessage); err != nil {
			return nil, err
		}
	}
	s.finish(session)
	msg := session.Append(models.RoleAssistant, capReachedMessage, false)
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save capped session: %w", err)
	}
	s.log.Warn("session force-completed at message cap",
		zap.String("session_id", session.ID),
		zap.Int("messages", len(session.Messages)))
	return &Reply{
		SessionID:         session.ID,
		Message:           msg,
		Status:            session.Status,
		InterviewComplete: true,
	}, nil
}

func (s *Service) finish(session *models.Session) {
	now := time.Now().UTC()
	session.Status = models.StatusCompleted
	session.EndedAt = &now
}

func (s *Service) normalizeInput(ctx context.Context, in Inbound) (string, error) {
	if len(in.Audio) > 0 {
		if strings.TrimSpace(in.Text) != "" {
			return "", fmt.Errorf("%w: message carries both text and audio", models.ErrInvalidInput)
		}
		if err := s.audio.Validate(in.Audio); err != nil {
			return "", err
		}
		text, err := s.transcriber.Transcribe(ctx, in.Audio)
		if err != nil {
			return "", fmt.Errorf("transcribe message: %w", err)
		}
		return strings.TrimSpace(text), nil
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", fmt.Errorf("%w: message text is empty", models.ErrInvalidInput)
	}
	return text, nil
}
