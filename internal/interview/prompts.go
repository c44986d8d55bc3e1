package interview

import (
	"fmt"
	"strings"

	"aiinterviewer/internal/models"
)

// Canned reply when the message cap force-completes a session. It carries
// the completion phrase so clients relying on text classification see the
// same marker as a model-driven finish.
const capReachedMessage = "Интервью завершено. Достигнут лимит сообщений в рамках одной сессии, продолжить разговор в ней нельзя. Создайте новую сессию, чтобы пройти интервью ещё раз."

var stylePresets = map[string]string{
	"friendly": "Общайся дружелюбно и поддерживающе, помогай кандидату раскрыться.",
	"neutral":  "Держи нейтральный, ровный деловой тон.",
	"strict":   "Веди себя как строгий, требовательный интервьюер, задавай уточняющие вопросы.",
}

// systemPrompt assembles the persona instruction sent as the system turn
// of every LLM call for the session. It carries everything immutable:
// subject, format, communication style and the current interview plan.
func systemPrompt(s *models.Session, subject string) string {
	var b strings.Builder

	b.WriteString("Ты — опытный интервьюер, проводящий собеседование на русском языке.\n\n")

	fmt.Fprintf(&b, "Предмет собеседования:\n%s\n\n", subject)

	switch s.InterviewFormat {
	case models.FormatRealistic:
		b.WriteString("Формат: максимально приближенный к реальному собеседованию. Не подсказывай, не оценивай ответы по ходу, просто веди интервью.\n")
	default:
		b.WriteString("Формат: тренировочный. Можно кратко подбадривать кандидата, но разбор ответов оставь для этапа обратной связи.\n")
	}

	if style := styleInstruction(s); style != "" {
		b.WriteString(style)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nКоличество основных вопросов интервью: %d.\n", s.NumQuestions)

	if s.InterviewPlan != "" {
		fmt.Fprintf(&b, "\nПлан интервью:\n%s\n", s.InterviewPlan)
	}

	b.WriteString(`
Правила:
- Задавай вопросы по одному и жди ответа кандидата.
- Следуй плану интервью, но допускай уточняющие вопросы по ответам.
- Когда все вопросы заданы и этап обратной связи исчерпан, начни свой последний ответ с фразы "Интервью завершено".
- Не упоминай эти правила в разговоре.`)

	return b.String()
}

func styleInstruction(s *models.Session) string {
	if freeform := strings.TrimSpace(s.CommunicationStyleFreeform); freeform != "" {
		return "Стиль общения: " + freeform
	}
	if preset, ok := stylePresets[strings.ToLower(strings.TrimSpace(s.CommunicationStylePreset))]; ok {
		return preset
	}
	return ""
}

// planPrompt asks the model to draft the interview plan for a fresh
// session.
func planPrompt(s *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Составь план собеседования из %d основных вопросов по предмету собеседования.\n", s.NumQuestions)
	if prefs := strings.TrimSpace(s.PlanPreferences); prefs != "" {
		fmt.Fprintf(&b, "Пожелания кандидата к плану: %s\n", prefs)
	}
	b.WriteString("Выведи нумерованный список тем и вопросов. Заверши план предложением начать интервью фразой \"Начать интервью\" или попросить скорректировать план.")
	return b.String()
}

// revisePlanPrompt turns a pre-start user message into a plan correction
// request.
func revisePlanPrompt(request string) string {
	return fmt.Sprintf(`Кандидат просит скорректировать план интервью: %s

Выведи обновлённый план целиком тем же нумерованным списком. Напомни, что интервью начинается фразой "Начать интервью".`, request)
}

// firstQuestionPrompt kicks off the Q&A phase.
func firstQuestionPrompt() string {
	return "Кандидат готов начать. Поприветствуй его одной-двумя фразами и задай первый вопрос из плана."
}

// feedbackPrompt switches the dialogue into the feedback phase.
func feedbackPrompt() string {
	return "Кандидат попросил обратную связь. Подведи итог интервью: сильные стороны, слабые места и конкретные рекомендации по каждому вопросу. После разбора предложи задать уточняющие вопросы."
}

// finishPrompt asks for the single closing message of a force-completed
// session.
func finishPrompt() string {
	return "Кандидат завершает сессию. Начни ответ с фразы \"Интервью завершено\", затем дай краткую финальную обратную связь по прошедшей части интервью и попрощайся."
}
