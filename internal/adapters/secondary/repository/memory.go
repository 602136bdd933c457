package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// MemoryStore est un store en mémoire (STORE_DRIVER=memory, tests).
// Un seul verrou couvre les deux collections : chaque méthode est atomique.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	posts map[string]*domain.Post
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*domain.User),
		posts: make(map[string]*domain.Post),
	}
}

func (m *MemoryStore) Users() ports.UserRepository { return (*memoryUsers)(m) }

func (m *MemoryStore) Posts() ports.PostRepository { return (*memoryPosts)(m) }

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

// --- USERS ---

type memoryUsers MemoryStore

func (r *memoryUsers) Save(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// L'email d'abord, quel que soit l'ordre de parcours de la map
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrEmailAlreadyExists
		}
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(func(u *domain.User) bool { return u.Email == email })
}

func (r *memoryUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(func(u *domain.User) bool { return u.Username == username })
}

func (r *memoryUsers) findOne(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUsers) GetMany(ctx context.Context, ids []string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *memoryUsers) ListExcept(ctx context.Context, excludeID string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.User, 0, len(r.users))
	for id, u := range r.users {
		if id != excludeID {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryUsers) AddFriend(ctx context.Context, userID, friendID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	return u.AddFriend(friendID)
}

func (r *memoryUsers) UpdateProfilePicture(ctx context.Context, userID, ref string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.SetProfilePicture(ref)
	return cloneUser(u), nil
}

// --- POSTS ---

type memoryPosts MemoryStore

func (r *memoryPosts) Save(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *memoryPosts) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.posts[postID]; ok {
		return clonePost(p), nil
	}
	return nil, domain.ErrPostNotFound
}

func (r *memoryPosts) List(ctx context.Context) ([]*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, clonePost(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryPosts) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	p.ToggleLike(userID)
	return clonePost(p), nil
}

func (r *memoryPosts) AddComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	p.Comments = append(p.Comments, comment)
	p.UpdatedAt = time.Now().UTC()
	return clonePost(p), nil
}

func (r *memoryPosts) Delete(ctx context.Context, postID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok || p.UserID != ownerID {
		return domain.ErrPostNotFound
	}
	delete(r.posts, postID)
	return nil
}

// --- HELPERS ---

// Les copies évitent que l'appelant modifie l'état du store sans verrou.
func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Friends = slices.Clone(u.Friends)
	if c.Friends == nil {
		c.Friends = []string{}
	}
	return &c
}

func clonePost(p *domain.Post) *domain.Post {
	c := *p
	c.Likes = slices.Clone(p.Likes)
	if c.Likes == nil {
		c.Likes = []string{}
	}
	c.Comments = slices.Clone(p.Comments)
	if c.Comments == nil {
		c.Comments = []domain.Comment{}
	}
	return &c
}
