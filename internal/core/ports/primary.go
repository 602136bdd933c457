package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

type RegisterCmd struct {
	Username string
	Email    string
	Password string
}

type LoginCmd struct {
	Email    string
	Password string
}

type CreatePostCmd struct {
	UserID  string
	Content string
	Image   string
	Privacy string // Brut, parsé par le service
}

// --- OUTPUTS ---

type AuthResponse struct {
	User        *domain.User
	AccessToken string
	ExpiresIn   time.Duration
}

// Identity est l'identité vérifiée, dérivée UNE fois par requête depuis le token.
type Identity struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// PostView est un post avec son auteur "peuplé".
type PostView struct {
	Post   *domain.Post
	Author domain.UserSummary
}

// --- PORTS PRIMAIRES (Driving) ---

type IdentityService interface {
	Register(ctx context.Context, cmd RegisterCmd) (*domain.User, error)
	Login(ctx context.Context, cmd LoginCmd) (*AuthResponse, error)
	Logout(ctx context.Context, id Identity) error
	Authenticate(ctx context.Context, token string) (*Identity, error)

	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]domain.UserSummary, error)
	UpdateProfilePicture(ctx context.Context, actorID, userID, ref string) (*domain.User, error)
}

type GraphService interface {
	AddFriend(ctx context.Context, userID, friendID string) error
	ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error)
}

type PostService interface {
	CreatePost(ctx context.Context, cmd CreatePostCmd) (*PostView, error)
	ListPosts(ctx context.Context, viewerID string) ([]*PostView, error)
	ToggleLike(ctx context.Context, userID, postID string) (*PostView, error)
	AddComment(ctx context.Context, userID, postID, text string) (*PostView, error)
	DeletePost(ctx context.Context, postID, userID string) error
}
