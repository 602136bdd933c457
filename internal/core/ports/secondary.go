package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

// --- PERSISTANCE ---

// UserRepository est un Port Secondaire (Driven).
// Les mutations de listes (amis) sont des opérations atomiques côté store,
// jamais des lecture-modification-écriture.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetMany ignore les IDs inconnus ; l'ordre du résultat n'est pas garanti.
	GetMany(ctx context.Context, ids []string) ([]*domain.User, error)
	ListExcept(ctx context.Context, excludeID string) ([]*domain.User, error)

	AddFriend(ctx context.Context, userID, friendID string) error
	UpdateProfilePicture(ctx context.Context, userID, ref string) (*domain.User, error)
}

type PostRepository interface {
	Save(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, postID string) (*domain.Post, error)
	// List renvoie tous les posts, du plus récent au plus ancien.
	List(ctx context.Context) ([]*domain.Post, error)

	ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error)
	AddComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error)
	// Delete ne supprime que si ownerID est bien le propriétaire.
	Delete(ctx context.Context, postID, ownerID string) error
}

// Store regroupe les deux collections derrière un même driver.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// --- SÉCURITÉ ---

// PasswordHasher abstrait l'algorithme de hachage
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenClaims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// TokenProvider abstrait la génération de JWT
type TokenProvider interface {
	Generate(user *domain.User) (token string, claims TokenClaims, err error)
	Validate(token string) (*TokenClaims, error)
	TTL() time.Duration
}

// TokenDenylist garde les tokens révoqués (logout) jusqu'à leur expiration.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
