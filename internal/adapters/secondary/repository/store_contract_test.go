package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// runStoreContract exécute le même comportement attendu sur chaque adapter.
// newStore doit rendre un store vide à chaque appel.
func runStoreContract(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("duplicate signup maps to the right error", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		saveUser(t, store, "alice")

		sameEmail, err := domain.NewUser("other", "alice@example.com", "h")
		require.NoError(t, err)
		assert.ErrorIs(t, store.Users().Save(ctx, sameEmail), domain.ErrEmailAlreadyExists)

		sameName, err := domain.NewUser("alice", "other@example.com", "h")
		require.NoError(t, err)
		assert.ErrorIs(t, store.Users().Save(ctx, sameName), domain.ErrUsernameTaken)
	})

	t.Run("lookups", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		bob := saveUser(t, store, "bob")

		got, err := store.Users().GetByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)
		assert.Empty(t, got.Friends)

		got, err = store.Users().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		_, err = store.Users().GetByID(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		others, err := store.Users().ListExcept(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, others, 1)
		assert.Equal(t, bob.ID, others[0].ID)

		many, err := store.Users().GetMany(ctx, []string{alice.ID, "ghost"})
		require.NoError(t, err)
		require.Len(t, many, 1)
		assert.Equal(t, alice.ID, many[0].ID)
	})

	t.Run("add friend twice keeps one entry", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		bob := saveUser(t, store, "bob")

		require.NoError(t, store.Users().AddFriend(ctx, alice.ID, bob.ID))
		require.NoError(t, store.Users().AddFriend(ctx, alice.ID, bob.ID))

		got, err := store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID}, got.Friends)

		assert.ErrorIs(t, store.Users().AddFriend(ctx, "ghost", bob.ID), domain.ErrUserNotFound)
	})

	t.Run("concurrent add friend keeps one entry", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		bob := saveUser(t, store, "bob")

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Users().AddFriend(ctx, alice.ID, bob.ID))
			}()
		}
		wg.Wait()

		got, err := store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{bob.ID}, got.Friends)
	})

	t.Run("update profile picture", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")

		got, err := store.Users().UpdateProfilePicture(ctx, alice.ID, "/uploads/a.png")
		require.NoError(t, err)
		assert.Equal(t, "/uploads/a.png", got.ProfilePicture)

		_, err = store.Users().UpdateProfilePicture(ctx, "ghost", "/uploads/a.png")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("toggle like twice restores state", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		post := savePost(t, store, alice, "hello", time.Now())

		liked, err := store.Posts().ToggleLike(ctx, post.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, liked.Likes)

		unliked, err := store.Posts().ToggleLike(ctx, post.ID, "u1")
		require.NoError(t, err)
		assert.Empty(t, unliked.Likes)

		_, err = store.Posts().ToggleLike(ctx, "ghost", "u1")
		assert.ErrorIs(t, err, domain.ErrPostNotFound)
	})

	t.Run("unlike keeps the order of other likes", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		post := savePost(t, store, alice, "hello", time.Now())

		for _, u := range []string{"u1", "u2", "u3"} {
			_, err := store.Posts().ToggleLike(ctx, post.ID, u)
			require.NoError(t, err)
		}
		got, err := store.Posts().ToggleLike(ctx, post.ID, "u2")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u3"}, got.Likes)
	})

	t.Run("concurrent likes are not lost", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		post := savePost(t, store, alice, "hello", time.Now())

		const n = 30
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Posts().ToggleLike(ctx, post.ID, fmt.Sprintf("liker-%d", i))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Posts().FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Len(t, got.Likes, n)
	})

	t.Run("add comment", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		post := savePost(t, store, alice, "hello", time.Now())

		c, err := domain.NewComment(alice.ID, "nice")
		require.NoError(t, err)
		got, err := store.Posts().AddComment(ctx, post.ID, c)
		require.NoError(t, err)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, "nice", got.Comments[0].Text)
		assert.Equal(t, alice.ID, got.Comments[0].UserID)

		_, err = store.Posts().AddComment(ctx, "ghost", c)
		assert.ErrorIs(t, err, domain.ErrPostNotFound)
	})

	t.Run("list newest first and owner-only delete", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		alice := saveUser(t, store, "alice")
		now := time.Now().UTC()
		first := savePost(t, store, alice, "first", now)
		second := savePost(t, store, alice, "second", now.Add(time.Second))

		list, err := store.Posts().List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID, "newest first")

		assert.ErrorIs(t, store.Posts().Delete(ctx, first.ID, "someone-else"), domain.ErrPostNotFound)
		_, err = store.Posts().FindByID(ctx, first.ID)
		require.NoError(t, err, "non-owner delete must not remove the post")

		require.NoError(t, store.Posts().Delete(ctx, first.ID, alice.ID))
		_, err = store.Posts().FindByID(ctx, first.ID)
		assert.ErrorIs(t, err, domain.ErrPostNotFound)
		assert.ErrorIs(t, store.Posts().Delete(ctx, first.ID, alice.ID), domain.ErrPostNotFound)
	})
}

func saveUser(t *testing.T, store ports.Store, name string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name, name+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, store.Users().Save(context.Background(), u))
	return u
}

func savePost(t *testing.T, store ports.Store, author *domain.User, content string, at time.Time) *domain.Post {
	t.Helper()
	p, err := domain.NewPost(author.ID, content, "", domain.PrivacyPublic)
	require.NoError(t, err)
	p.CreatedAt = at.UTC().Truncate(time.Millisecond)
	p.UpdatedAt = p.CreatedAt
	require.NoError(t, store.Posts().Save(context.Background(), p))
	return p
}
