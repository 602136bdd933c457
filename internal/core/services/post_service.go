package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type postService struct {
	posts ports.PostRepository
	users ports.UserRepository
}

func NewPostService(posts ports.PostRepository, users ports.UserRepository) ports.PostService {
	return &postService{posts: posts, users: users}
}

func (s *postService) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (*ports.PostView, error) {
	privacy, err := domain.ParsePrivacy(cmd.Privacy)
	if err != nil {
		return nil, err
	}
	post, err := domain.NewPost(cmd.UserID, cmd.Content, cmd.Image, privacy)
	if err != nil {
		return nil, err
	}

	author, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.posts.Save(ctx, post); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "📝 Post created", "post_id", post.ID, "user_id", post.UserID, "privacy", post.Privacy)
	return &ports.PostView{Post: post, Author: author.Summary()}, nil
}

// ListPosts renvoie tout ce que viewerID a le droit de voir (vide = anonyme).
func (s *postService) ListPosts(ctx context.Context, viewerID string) ([]*ports.PostView, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, err
	}

	owners, err := s.loadOwners(ctx, posts)
	if err != nil {
		return nil, err
	}

	views := make([]*ports.PostView, 0, len(posts))
	for _, p := range posts {
		owner := owners[p.UserID]
		if !p.VisibleTo(viewerID, owner) {
			continue
		}
		views = append(views, toView(p, owner))
	}
	return views, nil
}

func (s *postService) ToggleLike(ctx context.Context, userID, postID string) (*ports.PostView, error) {
	owner, err := s.visiblePostOwner(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	// Une seule opération atomique côté store (pas de read-modify-write)
	post, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	return toView(post, owner), nil
}

func (s *postService) AddComment(ctx context.Context, userID, postID, text string) (*ports.PostView, error) {
	comment, err := domain.NewComment(userID, text)
	if err != nil {
		return nil, err
	}

	owner, err := s.visiblePostOwner(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.AddComment(ctx, postID, comment)
	if err != nil {
		return nil, err
	}
	return toView(post, owner), nil
}

func (s *postService) DeletePost(ctx context.Context, postID, userID string) error {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return domain.ErrForbidden
	}

	if err := s.posts.Delete(ctx, postID, userID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "🗑️ Post deleted", "post_id", postID, "user_id", userID)
	return nil
}

// --- HELPERS ---

// visiblePostOwner charge le post + son auteur et masque (404) ce que
// l'utilisateur n'a pas le droit de voir.
func (s *postService) visiblePostOwner(ctx context.Context, viewerID, postID string) (*domain.User, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, post.UserID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if !post.VisibleTo(viewerID, owner) {
		return nil, domain.ErrPostNotFound
	}
	return owner, nil
}

func (s *postService) loadOwners(ctx context.Context, posts []*domain.Post) (map[string]*domain.User, error) {
	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}

	owners := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}

	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		owners[u.ID] = u
	}
	return owners, nil
}

func toView(p *domain.Post, owner *domain.User) *ports.PostView {
	view := &ports.PostView{Post: p, Author: domain.UserSummary{ID: p.UserID}}
	if owner != nil {
		view.Author = owner.Summary()
	}
	return view
}
