package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aiinterviewer/internal/models"
)

// SessionStore persists interview sessions and their message logs.
// One Save call is one transaction: the session row and any new
// messages become visible together or not at all.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore wraps the database handle.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save upserts the session row and inserts messages appended since the
// last Save. Existing message rows are never updated or deleted.
func (s *SessionStore) Save(ctx context.Context, session *models.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, interview_plan = ?, started_at = ?, ended_at = ? WHERE id = ?`,
		string(session.Status), session.InterviewPlan, session.StartedAt, session.EndedAt, session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (id, status, mode, vacancy_url, vacancy_text, role_name, num_questions,
				interview_plan, interview_format, comm_style_preset, comm_style_freeform, plan_preferences,
				started_at, ended_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, string(session.Status), string(session.Mode),
			session.VacancyURL, session.VacancyText, session.RoleName, session.NumQuestions,
			session.InterviewPlan, string(session.InterviewFormat),
			session.CommunicationStylePreset, session.CommunicationStyleFreeform, session.PlanPreferences,
			session.StartedAt, session.EndedAt, session.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}

	for _, m := range session.Unflushed() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, role, content, internal, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, session.ID, string(m.Role), m.Content, m.Internal, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save session: %w", err)
	}
	session.MarkFlushed()
	return nil
}

// FindByID loads the session and its full ordered message log.
func (s *SessionStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var (
		session            models.Session
		status, mode       string
		format             string
		startedAt, endedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, mode, vacancy_url, vacancy_text, role_name, num_questions,
			interview_plan, interview_format, comm_style_preset, comm_style_freeform, plan_preferences,
			started_at, ended_at, created_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &status, &mode,
		&session.VacancyURL, &session.VacancyText, &session.RoleName, &session.NumQuestions,
		&session.InterviewPlan, &format,
		&session.CommunicationStylePreset, &session.CommunicationStyleFreeform, &session.PlanPreferences,
		&startedAt, &endedAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	if session.Mode, err = models.ParseMode(mode); err != nil {
		return nil, err
	}
	if format != "" {
		if session.InterviewFormat, err = models.ParseFormat(format); err != nil {
			return nil, err
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		session.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}

	if err := s.loadMessages(ctx, &session); err != nil {
		return nil, err
	}
	session.MarkFlushed()
	return &session, nil
}

func (s *SessionStore) loadMessages(ctx context.Context, session *models.Session) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, internal, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m         models.Message
			role      string
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Internal, &createdAt); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if m.Role, err = models.ParseRole(role); err != nil {
			return err
		}
		m.CreatedAt = createdAt
		session.Messages = append(session.Messages, &m)
	}
	return rows.Err()
}
