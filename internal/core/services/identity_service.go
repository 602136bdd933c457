package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// IdentityService implémente ports.IdentityService (Primary Port).
type IdentityService struct {
	users         ports.UserRepository
	hasher        ports.PasswordHasher
	tokenProvider ports.TokenProvider
	denylist      ports.TokenDenylist
}

func NewIdentityService(
	users ports.UserRepository,
	hasher ports.PasswordHasher,
	token ports.TokenProvider,
	denylist ports.TokenDenylist,
) *IdentityService {
	return &IdentityService{
		users:         users,
		hasher:        hasher,
		tokenProvider: token,
		denylist:      denylist,
	}
}

// --- AUTHENTIFICATION ---

func (s *IdentityService) Register(ctx context.Context, cmd ports.RegisterCmd) (*domain.User, error) {
	if cmd.Password == "" {
		return nil, domain.ErrWeakPassword
	}

	// Validation + normalisation avant les checks d'unicité
	user, err := domain.NewUser(cmd.Username, cmd.Email, "")
	if err != nil {
		return nil, err
	}

	// 1. Fail Fast : email puis username, vérifiés indépendamment.
	// La contrainte unique du store reste la vraie garantie (race condition).
	if err := s.ensureFree(ctx, s.users.GetByEmail, user.Email, domain.ErrEmailAlreadyExists); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, s.users.GetByUsername, user.Username, domain.ErrUsernameTaken); err != nil {
		return nil, err
	}

	// 2. Hachage
	user.PasswordHash, err = s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persistance
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("repository save failed: %w", err)
	}

	slog.InfoContext(ctx, "👤 User registered", "user_id", user.ID)
	return user, nil
}

func (s *IdentityService) ensureFree(
	ctx context.Context,
	lookup func(context.Context, string) (*domain.User, error),
	value string,
	conflict error,
) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return conflict
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("uniqueness check: %w", err)
	}
}

func (s *IdentityService) Login(ctx context.Context, cmd ports.LoginCmd) (*ports.AuthResponse, error) {
	// 1. Récupération
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(cmd.Email)))
	if err != nil {
		return nil, err
	}

	// 2. Vérification Mot de passe
	if err := s.hasher.Compare(user.PasswordHash, cmd.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	// 3. Génération du token
	token, _, err := s.tokenProvider.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("login token gen failed: %w", err)
	}

	return &ports.AuthResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   s.tokenProvider.TTL(),
	}, nil
}

// Logout révoque le token courant jusqu'à son expiration naturelle.
func (s *IdentityService) Logout(ctx context.Context, id ports.Identity) error {
	ttl := time.Until(id.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.denylist.Revoke(ctx, id.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Authenticate vérifie signature + expiration + révocation.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*ports.Identity, error) {
	claims, err := s.tokenProvider.Validate(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("denylist lookup: %w", err)
	}
	if revoked {
		return nil, domain.ErrInvalidToken
	}

	return &ports.Identity{
		UserID:    claims.UserID,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// --- GESTION UTILISATEUR ---

func (s *IdentityService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *IdentityService) ListUsers(ctx context.Context, excludeID string) ([]domain.UserSummary, error) {
	users, err := s.users.ListExcept(ctx, excludeID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// UpdateProfilePicture : cible inconnue -> 404 avant le contrôle de propriété (403)
func (s *IdentityService) UpdateProfilePicture(ctx context.Context, actorID, userID, ref string) (*domain.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if actorID != userID {
		return nil, domain.ErrForbidden
	}
	return s.users.UpdateProfilePicture(ctx, userID, strings.TrimSpace(ref))
}
