package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/auth"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// --- AUTH ---

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}

	_, err := h.identity.Register(c.Request.Context(), ports.RegisterCmd{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}

	resp, err := h.identity.Login(c.Request.Context(), ports.LoginCmd{Email: req.Email, Password: req.Password})
	if err != nil {
		// Sur /login, user inconnu = requête invalide (400), pas 404
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidCredentials) {
			err = badRequest(err)
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     resp.AccessToken,
		ExpiresIn: int64(resp.ExpiresIn.Seconds()),
		User:      toUserResponse(resp.User),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	id := auth.ForContext(c.Request.Context())
	if err := h.identity.Logout(c.Request.Context(), *id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// --- POSTS ---

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}
	userID, err := actorID(c, req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	view, err := h.posts.CreatePost(c.Request.Context(), ports.CreatePostCmd{
		UserID:  userID,
		Content: req.Content,
		Image:   req.Image,
		Privacy: req.Privacy,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, toPostResponse(view))
}

func (h *Handler) ListPosts(c *gin.Context) {
	views, err := h.posts.ListPosts(c.Request.Context(), auth.UserID(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toPostList(views))
}

func (h *Handler) ToggleLike(c *gin.Context) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}
	userID, err := actorID(c, req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	view, err := h.posts.ToggleLike(c.Request.Context(), userID, req.PostID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toPostResponse(view))
}

func (h *Handler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}
	userID, err := actorID(c, req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	view, err := h.posts.AddComment(c.Request.Context(), userID, c.Param("postId"), req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, toPostResponse(view))
}

func (h *Handler) DeletePost(c *gin.Context) {
	// Corps optionnel sur un DELETE
	var req deletePostRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}
	userID, err := actorID(c, req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	postID := c.Param("postId")
	if err := h.posts.DeletePost(c.Request.Context(), postID, userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted", "postId": postID})
}

// --- USERS ---

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.identity.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *Handler) ListUsers(c *gin.Context) {
	userID, err := actorID(c, c.Query("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	users, err := h.identity.ListUsers(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toSummaryList(users))
}

func (h *Handler) UpdateProfilePicture(c *gin.Context) {
	var req profilePictureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}

	user, err := h.identity.UpdateProfilePicture(c.Request.Context(), auth.UserID(c.Request.Context()), c.Param("id"), req.ProfilePicture)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": toUserResponse(user)})
}

// --- FRIENDS ---

func (h *Handler) AddFriend(c *gin.Context) {
	var req addFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequestf("invalid request body: %v", err))
		return
	}
	userID, err := actorID(c, req.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.graph.AddFriend(c.Request.Context(), userID, req.FriendID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend added"})
}

func (h *Handler) ListFriends(c *gin.Context) {
	friends, err := h.graph.ListFriends(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toSummaryList(friends))
}

// --- OPS ---

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.health.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actorID renvoie l'identité du token. Un userId client différent -> 403.
func actorID(c *gin.Context, claimed string) (string, error) {
	id := auth.UserID(c.Request.Context())
	if id == "" {
		return "", auth.ErrMissingToken
	}
	if claimed != "" && claimed != id {
		return "", domain.ErrForbidden
	}
	return id, nil
}
