package models

import (
	"regexp"
	"strings"
)

// Trigger is a recognized control phrase that changes interview flow
// instead of being treated as interview content.
type Trigger int

const (
	TriggerNone Trigger = iota
	// TriggerStart begins the Q&A phase.
	TriggerStart
	// TriggerFeedback switches an ongoing interview to feedback mode.
	TriggerFeedback
	// TriggerFinish force-completes the session.
	TriggerFinish
	// TriggerComplete is the system-only marker the assistant emits when
	// it decides the interview is over.
	TriggerComplete
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerFeedback:
		return "feedback"
	case TriggerFinish:
		return "finish"
	case TriggerComplete:
		return "complete"
	}
	return "none"
}

// Phrase returns the canonical control phrase for the trigger, used when
// echoing a trigger turn into conversation memory.
func (t Trigger) Phrase() string {
	switch t {
	case TriggerStart:
		return "Начать интервью"
	case TriggerFeedback:
		return "Обратная связь"
	case TriggerFinish:
		return "Завершить интервью"
	case TriggerComplete:
		return "Интервью завершено"
	}
	return ""
}

// Prefix matching is deliberate: users and models append punctuation or
// explanations after the phrase ("Начать интервью, пожалуйста").
var triggerPhrases = map[Trigger][]string{
	TriggerStart:    {"начать интервью", "start interview"},
	TriggerFeedback: {"обратная связь", "feedback"},
	TriggerFinish:   {"завершить интервью", "finish interview"},
	TriggerComplete: {"интервью завершено", "interview complete"},
}

// Classification order matters: FINISH must win before FEEDBACK when both
// could prefix-match localized variants.
var triggerOrder = []Trigger{TriggerComplete, TriggerFinish, TriggerStart, TriggerFeedback}

var markupRE = regexp.MustCompile(`<[^>]*>`)

func normalizeTriggerText(s string) string {
	s = strings.ToLower(s)
	s = markupRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ClassifyTrigger classifies free text as one of the control phrases.
// Matching is case-insensitive, markup-stripped and prefix-based; text
// that matches nothing classifies as TriggerNone.
func ClassifyTrigger(text string) Trigger {
	normalized := normalizeTriggerText(text)
	if normalized == "" {
		return TriggerNone
	}
	for _, t := range triggerOrder {
		for _, phrase := range triggerPhrases[t] {
			if strings.HasPrefix(normalized, phrase) {
				return t
			}
		}
	}
	return TriggerNone
}

// Matches reports whether the text classifies as this specific trigger.
func (t Trigger) Matches(text string) bool {
	return ClassifyTrigger(text) == t
}
