package interview

import (
	"context"

	"aiinterviewer/internal/models"
)

// GetSession returns the session with its full ordered message log.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.store.FindByID(ctx, id)
}

// GetStatus returns just the lifecycle status of the session.
func (s *Service) GetStatus(ctx context.Context, id string) (models.SessionStatus, error) {
	session, err := s.store.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return session.Status, nil
}
