package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"aiinterviewer/internal/models"
)

// memStore is an in-memory SessionStore with Save/FindByID semantics
// matching the SQL store: FindByID returns a fully flushed aggregate.
type memStore struct {
	sessions map[string]*models.Session
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*models.Session)}
}

func (s *memStore) Save(_ context.Context, session *models.Session) error {
	s.saves++
	s.sessions[session.ID] = cloneSession(session)
	session.MarkFlushed()
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*models.Session, error) {
	stored, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return cloneSession(stored), nil
}

func cloneSession(s *models.Session) *models.Session {
	c := &models.Session{
		ID:            s.ID,
		Status:        s.Status,
		InterviewPlan: s.InterviewPlan,
		CreatedAt:     s.CreatedAt,
		Messages:      append([]*models.Message(nil), s.Messages...),
		SessionParams: s.SessionParams,
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	c.MarkFlushed()
	return c
}

type llmCall struct {
	system  string
	history int
	user    string
}

// scriptedLLM pops replies in order and records every call.
type scriptedLLM struct {
	replies     []string
	calls       []llmCall
	err         error
	failAtChunk int
}

func (l *scriptedLLM) take(system string, history []*models.Message, user string) string {
	l.calls = append(l.calls, llmCall{system: system, history: len(history), user: user})
	if len(l.replies) == 0 {
		return "ответ"
	}
	reply := l.replies[0]
	l.replies = l.replies[1:]
	return reply
}

func (l *scriptedLLM) Complete(_ context.Context, system string, history []*models.Message, user string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return l.take(system, history, user), nil
}

func (l *scriptedLLM) CompleteStream(_ context.Context, system string, history []*models.Message, user string, onDelta func(string) error) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	reply := l.take(system, history, user)
	runes := []rune(reply)
	mid := len(runes) / 2
	for i, chunk := range []string{string(runes[:mid]), string(runes[mid:])} {
		if l.failAtChunk > 0 && i+1 == l.failAtChunk {
			return "", errors.New("stream interrupted")
		}
		if chunk == "" {
			continue
		}
		if err := onDelta(chunk); err != nil {
			return "", err
		}
	}
	return reply, nil
}

type stubSubjects struct{}

func (stubSubjects) ResolveVacancyText(_ context.Context, vacancyURL, vacancyText string) (string, error) {
	if vacancyText != "" {
		return vacancyText, nil
	}
	return "вакансия по адресу " + vacancyURL, nil
}

func (stubSubjects) ResolveRoleText(_ context.Context, roleName string) (string, error) {
	return "роль " + roleName, nil
}

type stubAudio struct{ err error }

func (a stubAudio) Validate([]byte) error { return a.err }

type stubTranscriber struct {
	text string
	err  error
}

func (tr stubTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return tr.text, tr.err
}

func newTestService(replies ...string) (*Service, *memStore, *scriptedLLM) {
	store := newMemStore()
	llm := &scriptedLLM{replies: replies}
	svc := NewService(store, llm, stubSubjects{}, stubAudio{}, stubTranscriber{text: "расшифровка"}, 0, zap.NewNop())
	return svc, store, llm
}

func mustCreate(t *testing.T, svc *Service) *models.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), CreateParams{
		Mode:        "vacancy",
		VacancyText: "Go-разработчик в платёжную команду",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func mustProcess(t *testing.T, svc *Service, id, text string) *Reply {
	t.Helper()
	reply, err := svc.ProcessMessage(context.Background(), id, Inbound{Text: text})
	if err != nil {
		t.Fatalf("process %q: %v", text, err)
	}
	return reply
}

func TestCreateSessionDraftsPlan(t *testing.T) {
	svc, store, llm := newTestService("1. Вопрос про горутины\n2. Вопрос про каналы")

	session := mustCreate(t, svc)

	if session.Status != models.StatusPlanned {
		t.Fatalf("status = %v, want planned", session.Status)
	}
	if !strings.Contains(session.InterviewPlan, "горутины") {
		t.Fatalf("plan not set: %q", session.InterviewPlan)
	}
	if len(session.Messages) != 1 || session.Messages[0].Role != models.RoleAssistant {
		t.Fatalf("expected single assistant plan message, got %+v", session.Messages)
	}

	stored, err := store.FindByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if stored.InterviewPlan != session.InterviewPlan || len(stored.Messages) != 1 {
		t.Fatalf("persisted state mismatch: %+v", stored)
	}

	if len(llm.calls) != 1 || llm.calls[0].history != 0 {
		t.Fatalf("plan call mismatch: %+v", llm.calls)
	}
	if !strings.Contains(llm.calls[0].system, "платёжную команду") {
		t.Fatal("system prompt must carry the vacancy text")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	cases := []struct {
		name   string
		params CreateParams
	}{
		{"unknown mode", CreateParams{Mode: "project"}},
		{"vacancy without source", CreateParams{Mode: "vacancy"}},
		{"vacancy with both sources", CreateParams{Mode: "vacancy", VacancyURL: "https://hh.ru/vacancy/1", VacancyText: "text"}},
		{"vacancy with role name", CreateParams{Mode: "vacancy", VacancyText: "text", RoleName: "QA"}},
		{"role without name", CreateParams{Mode: "role"}},
		{"role with vacancy url", CreateParams{Mode: "role", RoleName: "QA", VacancyURL: "https://hh.ru/vacancy/1"}},
		{"too many questions", CreateParams{Mode: "role", RoleName: "QA", NumQuestions: 51}},
		{"negative questions", CreateParams{Mode: "role", RoleName: "QA", NumQuestions: -1}},
		{"unknown format", CreateParams{Mode: "role", RoleName: "QA", InterviewFormat: "casual"}},
	}

	svc, store, _ := newTestService()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateSession(context.Background(), tc.params); !errors.Is(err, models.ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
	if len(store.sessions) != 0 {
		t.Fatalf("invalid requests must not persist sessions, got %d", len(store.sessions))
	}
}

func TestCreateSessionDefaultsQuestionCount(t *testing.T) {
	svc, _, llm := newTestService("план")
	session := mustCreate(t, svc)
	if session.NumQuestions != defaultNumQuestions {
		t.Fatalf("num questions = %d, want %d", session.NumQuestions, defaultNumQuestions)
	}
	if !strings.Contains(llm.calls[0].user, "5") {
		t.Fatalf("plan prompt should mention the question count: %q", llm.calls[0].user)
	}
}

func TestPlanRevision(t *testing.T) {
	svc, store, _ := newTestService("план v1", "план v2 с конкурентностью")
	session := mustCreate(t, svc)

	reply := mustProcess(t, svc, session.ID, "Добавь вопросы про конкурентность")

	if reply.Status != models.StatusPlanned {
		t.Fatalf("status = %v, want planned", reply.Status)
	}
	if reply.Message.Content != "план v2 с конкурентностью" {
		t.Fatalf("reply = %q", reply.Message.Content)
	}

	stored, _ := store.FindByID(context.Background(), session.ID)
	if stored.InterviewPlan != "план v2 с конкурентностью" {
		t.Fatalf("plan not overwritten: %q", stored.InterviewPlan)
	}
	// Only the revised plan joins the log; the request itself does not.
	if len(stored.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(stored.Messages))
	}
	if stored.Messages[1].Role != models.RoleAssistant {
		t.Fatalf("revision reply must be an assistant message: %+v", stored.Messages[1])
	}
}

func TestHappyPathToNaturalCompletion(t *testing.T) {
	svc, store, _ := newTestService(
		"план",
		"Добрый день! Первый вопрос: что такое горутина?",
		"Хорошо. Второй вопрос: зачем нужен select?",
		"Разбор: сильные стороны ... рекомендации ...",
		"Интервью завершено. Спасибо за уделённое время!",
	)
	session := mustCreate(t, svc)
	ctx := context.Background()

	reply := mustProcess(t, svc, session.ID, "Начать интервью")
	if reply.Status != models.StatusOngoing {
		t.Fatalf("status after start = %v", reply.Status)
	}
	stored, _ := store.FindByID(ctx, session.ID)
	if stored.StartedAt == nil {
		t.Fatal("StartedAt must be set on start")
	}
	// Plan, internal start echo, first question.
	if len(stored.Messages) != 3 || !stored.Messages[1].Internal {
		t.Fatalf("unexpected log after start: %+v", stored.Messages)
	}

	reply = mustProcess(t, svc, session.ID, "Горутина это легковесный поток")
	if reply.Status != models.StatusOngoing || !strings.Contains(reply.Message.Content, "select") {
		t.Fatalf("answer turn mismatch: %+v", reply)
	}

	reply = mustProcess(t, svc, session.ID, "Обратная связь")
	if reply.Status != models.StatusFeedback {
		t.Fatalf("status after feedback trigger = %v", reply.Status)
	}

	reply = mustProcess(t, svc, session.ID, "Спасибо, на этом всё")
	if !reply.InterviewComplete || reply.Status != models.StatusCompleted {
		t.Fatalf("completion marker not applied: %+v", reply)
	}

	stored, _ = store.FindByID(ctx, session.ID)
	if stored.Status != models.StatusCompleted || stored.EndedAt == nil {
		t.Fatalf("final state mismatch: status=%v ended=%v", stored.Status, stored.EndedAt)
	}
}

func TestForcedFinish(t *testing.T) {
	svc, store, _ := newTestService(
		"план",
		"Первый вопрос",
		"Интервью завершено. Короткий разбор: ...",
	)
	session := mustCreate(t, svc)
	mustProcess(t, svc, session.ID, "Начать интервью")

	before, _ := store.FindByID(context.Background(), session.ID)
	reply := mustProcess(t, svc, session.ID, "Завершить интервью")

	if !reply.InterviewComplete || reply.Status != models.StatusCompleted {
		t.Fatalf("forced finish mismatch: %+v", reply)
	}

	after, _ := store.FindByID(context.Background(), session.ID)
	if after.EndedAt == nil {
		t.Fatal("EndedAt must be set")
	}
	// Internal finish echo plus exactly one closing assistant message.
	if len(after.Messages) != len(before.Messages)+2 {
		t.Fatalf("messages grew by %d, want 2", len(after.Messages)-len(before.Messages))
	}
}

func TestCompletedSessionRejectsMessages(t *testing.T) {
	svc, _, _ := newTestService("план", "Первый вопрос", "Интервью завершено.")
	session := mustCreate(t, svc)
	mustProcess(t, svc, session.ID, "Начать интервью")
	mustProcess(t, svc, session.ID, "Завершить интервью")

	_, err := svc.ProcessMessage(context.Background(), session.ID, Inbound{Text: "ещё вопрос"})
	if !errors.Is(err, models.ErrSessionCompleted) {
		t.Fatalf("error = %v, want ErrSessionCompleted", err)
	}
}

func TestMessageCapForcesCompletion(t *testing.T) {
	svc, store, llm := newTestService()

	session := models.NewSession(models.SessionParams{
		Mode:         models.ModeVacancy,
		VacancyText:  "вакансия",
		NumQuestions: 5,
	})
	session.Status = models.StatusOngoing
	for i := 0; i < MaxSessionMessages; i++ {
		session.Append(models.RoleUser, fmt.Sprintf("сообщение %d", i), false)
	}
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	reply := mustProcess(t, svc, session.ID, "продолжим?")

	if !reply.InterviewComplete || reply.Status != models.StatusCompleted {
		t.Fatalf("cap must complete the session: %+v", reply)
	}
	if !strings.HasPrefix(reply.Message.Content, "Интервью завершено") {
		t.Fatalf("canned message must carry the completion marker: %q", reply.Message.Content)
	}
	if len(llm.calls) != 0 {
		t.Fatalf("cap path must not call the llm, got %d calls", len(llm.calls))
	}

	stored, _ := store.FindByID(context.Background(), session.ID)
	if stored.Status != models.StatusCompleted || stored.EndedAt == nil {
		t.Fatalf("capped session not persisted as completed: %+v", stored.Status)
	}
}

func TestLLMFailureLeavesSessionUntouched(t *testing.T) {
	svc, store, llm := newTestService("план", "Первый вопрос")
	session := mustCreate(t, svc)
	mustProcess(t, svc, session.ID, "Начать интервью")

	before, _ := store.FindByID(context.Background(), session.ID)

	llm.err = errors.New("backend unavailable")
	_, err := svc.ProcessMessage(context.Background(), session.ID, Inbound{Text: "мой ответ"})
	if err == nil {
		t.Fatal("expected error")
	}

	after, _ := store.FindByID(context.Background(), session.ID)
	if len(after.Messages) != len(before.Messages) || after.Status != before.Status {
		t.Fatalf("failed turn must not mutate the session: before=%d after=%d", len(before.Messages), len(after.Messages))
	}

	// The same message succeeds once the backend is back.
	llm.err = nil
	llm.replies = []string{"Второй вопрос"}
	reply := mustProcess(t, svc, session.ID, "мой ответ")
	if reply.Message.Content != "Второй вопрос" {
		t.Fatalf("retry reply = %q", reply.Message.Content)
	}
}

func TestAudioAnswerIsTranscribed(t *testing.T) {
	svc, store, llm := newTestService("план", "Первый вопрос", "Следующий вопрос")
	session := mustCreate(t, svc)
	mustProcess(t, svc, session.ID, "Начать интервью")

	reply, err := svc.ProcessMessage(context.Background(), session.ID, Inbound{Audio: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("audio turn: %v", err)
	}
	if reply.Message.Content != "Следующий вопрос" {
		t.Fatalf("reply = %q", reply.Message.Content)
	}

	last := llm.calls[len(llm.calls)-1]
	if last.user != "расшифровка" {
		t.Fatalf("llm user turn = %q, want transcription", last.user)
	}
	stored, _ := store.FindByID(context.Background(), session.ID)
	userMsg := stored.Messages[len(stored.Messages)-2]
	if userMsg.Role != models.RoleUser || userMsg.Content != "расшифровка" {
		t.Fatalf("transcription not persisted as user turn: %+v", userMsg)
	}
}

func TestInvalidAudioRejectedBeforeTranscription(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{replies: []string{"план", "Первый вопрос"}}
	svc := NewService(store, llm, stubSubjects{}, stubAudio{err: fmt.Errorf("%w: not a wav", models.ErrUnsupportedAudioFormat)},
		stubTranscriber{text: "не должно вызываться"}, 0, zap.NewNop())

	session := mustCreate(t, svc)
	mustProcess(t, svc, session.ID, "Начать интервью")
	before, _ := store.FindByID(context.Background(), session.ID)

	_, err := svc.ProcessMessage(context.Background(), session.ID, Inbound{Audio: []byte{1}})
	if !errors.Is(err, models.ErrUnsupportedAudioFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedAudioFormat", err)
	}

	after, _ := store.FindByID(context.Background(), session.ID)
	if len(after.Messages) != len(before.Messages) {
		t.Fatal("rejected audio must not mutate the session")
	}
}

func TestStreamingAppliesOnCompletion(t *testing.T) {
	svc, store, _ := newTestService("план", "Первый вопрос: расскажите о себе")
	session := mustCreate(t, svc)

	var deltas []string
	reply, err := svc.ProcessMessageStream(context.Background(), session.ID, Inbound{Text: "Начать интервью"}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("stream turn: %v", err)
	}

	if joined := strings.Join(deltas, ""); joined != reply.Message.Content {
		t.Fatalf("deltas %q do not assemble the final reply %q", joined, reply.Message.Content)
	}
	stored, _ := store.FindByID(context.Background(), session.ID)
	if stored.Status != models.StatusOngoing {
		t.Fatalf("status = %v, want ongoing", stored.Status)
	}
}

func TestStreamingFailureDiscardsAccumulation(t *testing.T) {
	svc, store, llm := newTestService("план", "Первый вопрос")
	session := mustCreate(t, svc)
	mustProcess(t, svc, session.ID, "Начать интервью")
	before, _ := store.FindByID(context.Background(), session.ID)

	llm.failAtChunk = 2
	_, err := svc.ProcessMessageStream(context.Background(), session.ID, Inbound{Text: "мой ответ"}, func(string) error { return nil })
	if err == nil {
		t.Fatal("expected mid-stream error")
	}

	after, _ := store.FindByID(context.Background(), session.ID)
	if len(after.Messages) != len(before.Messages) {
		t.Fatal("interrupted stream must not persist partial replies")
	}
}

func TestUnknownSessionNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ProcessMessage(context.Background(), "missing", Inbound{Text: "привет"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetSession error = %v, want ErrNotFound", err)
	}
}
