package services

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type graphService struct {
	users ports.UserRepository
}

func NewGraphService(users ports.UserRepository) ports.GraphService {
	return &graphService{users: users}
}

// AddFriend crée le lien User -> Friend (un seul sens, idempotent).
func (s *graphService) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == "" || friendID == "" {
		return domain.ErrUserNotFound
	}
	if userID == friendID {
		return domain.ErrSelfFriend
	}
	if _, err := s.users.GetByID(ctx, friendID); err != nil {
		return err
	}
	return s.users.AddFriend(ctx, userID, friendID)
}

func (s *graphService) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Friends) == 0 {
		return []domain.UserSummary{}, nil
	}

	friends, err := s.users.GetMany(ctx, user.Friends)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.User, len(friends))
	for _, f := range friends {
		byID[f.ID] = f
	}

	// On garde l'ordre d'ajout
	out := make([]domain.UserSummary, 0, len(user.Friends))
	for _, id := range user.Friends {
		if f, ok := byID[id]; ok {
			out = append(out, f.Summary())
		}
	}
	return out, nil
}
