package interview

import (
	"fmt"

	"aiinterviewer/internal/models"
)

// MaxSessionMessages is the hard iteration cap. A session whose log has
// reached it is force-completed on the next call regardless of input.
const MaxSessionMessages = 100

// Action is what the orchestrator must do for a given input.
type Action int

const (
	// ActionRevisePlan regenerates the interview plan while PLANNED.
	ActionRevisePlan Action = iota
	// ActionStartInterview begins the Q&A phase.
	ActionStartInterview
	// ActionAnswerQuestion continues Q&A with an ordinary answer.
	ActionAnswerQuestion
	// ActionSwitchToFeedback moves an ongoing interview to feedback mode.
	ActionSwitchToFeedback
	// ActionFeedbackReply continues the feedback dialogue.
	ActionFeedbackReply
	// ActionForceComplete ends the session on an explicit FINISH command.
	ActionForceComplete
	// ActionCapComplete ends the session because the message cap was hit.
	ActionCapComplete
)

func (a Action) String() string {
	switch a {
	case ActionRevisePlan:
		return "revise-plan"
	case ActionStartInterview:
		return "start-interview"
	case ActionAnswerQuestion:
		return "answer-question"
	case ActionSwitchToFeedback:
		return "switch-to-feedback"
	case ActionFeedbackReply:
		return "feedback-reply"
	case ActionForceComplete:
		return "force-complete"
	case ActionCapComplete:
		return "cap-complete"
	}
	return "unknown"
}

// Decision is the outcome of classifying one input against the current
// session state. Next is the status the orchestrator moves to once the
// corresponding interaction succeeds; for ActionAnswerQuestion and
// ActionFeedbackReply the assistant reply may still upgrade Next to
// COMPLETED when it carries the completion marker.
type Decision struct {
	Action  Action
	Trigger models.Trigger
	Next    models.SessionStatus
}

// Decide computes the allowed transition for (status, message count,
// input text). It is a pure function: no LLM calls, no mutation. The
// orchestrator applies the result.
func Decide(status models.SessionStatus, messageCount int, input string) (Decision, error) {
	if status == models.StatusCompleted {
		return Decision{}, models.ErrSessionCompleted
	}
	if messageCount >= MaxSessionMessages {
		return Decision{Action: ActionCapComplete, Next: models.StatusCompleted}, nil
	}

	trigger := models.ClassifyTrigger(input)

	switch status {
	case models.StatusPlanned:
		switch trigger {
		case models.TriggerStart:
			return Decision{Action: ActionStartInterview, Trigger: trigger, Next: models.StatusOngoing}, nil
		case models.TriggerFeedback, models.TriggerFinish:
			return Decision{}, fmt.Errorf("%w: %q is not allowed while the interview is still planned",
				models.ErrInvalidTransition, trigger)
		default:
			return Decision{Action: ActionRevisePlan, Trigger: trigger, Next: models.StatusPlanned}, nil
		}

	case models.StatusOngoing:
		switch trigger {
		case models.TriggerStart:
			return Decision{}, fmt.Errorf("%w: interview is already started", models.ErrInvalidTransition)
		case models.TriggerFeedback:
			return Decision{Action: ActionSwitchToFeedback, Trigger: trigger, Next: models.StatusFeedback}, nil
		case models.TriggerFinish:
			return Decision{Action: ActionForceComplete, Trigger: trigger, Next: models.StatusCompleted}, nil
		default:
			return Decision{Action: ActionAnswerQuestion, Trigger: trigger, Next: models.StatusOngoing}, nil
		}

	case models.StatusFeedback:
		switch trigger {
		case models.TriggerStart:
			return Decision{}, fmt.Errorf("%w: interview cannot be restarted from feedback", models.ErrInvalidTransition)
		case models.TriggerFinish:
			return Decision{Action: ActionForceComplete, Trigger: trigger, Next: models.StatusCompleted}, nil
		default:
			return Decision{Action: ActionFeedbackReply, Trigger: trigger, Next: models.StatusFeedback}, nil
		}
	}

	return Decision{}, fmt.Errorf("%w: unexpected session status %q", models.ErrInvalidInput, status)
}
