package rest

import (
	"time"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// --- REQUESTS ---

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// userId est toléré pour compatibilité client, mais doit égaler le token.
type createPostRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
	Image   string `json:"image"`
	Privacy string `json:"privacy"`
}

type likeRequest struct {
	UserID string `json:"userId"`
	PostID string `json:"postId" binding:"required"`
}

type commentRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type deletePostRequest struct {
	UserID string `json:"userId"`
}

type addFriendRequest struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId" binding:"required"`
}

type profilePictureRequest struct {
	ProfilePicture string `json:"profilePicture" binding:"required"`
}

// --- RESPONSES ---
// Le hash du mot de passe n'a pas de champ ici : il ne peut pas fuiter.

type userResponse struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture"`
	Friends        []string  `json:"friends"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type userSummaryResponse struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

type commentResponse struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type postResponse struct {
	ID        string              `json:"_id"`
	User      userSummaryResponse `json:"userId"`
	Content   string              `json:"content"`
	Image     string              `json:"image,omitempty"`
	Likes     []string            `json:"likes"`
	Comments  []commentResponse   `json:"comments"`
	Privacy   domain.Privacy      `json:"privacy"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"` // secondes
	User      userResponse `json:"user"`
}

// --- MAPPERS ---

func toUserResponse(u *domain.User) userResponse {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}
	return userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Friends:        friends,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toSummaryResponse(s domain.UserSummary) userSummaryResponse {
	return userSummaryResponse{ID: s.ID, Username: s.Username, ProfilePicture: s.ProfilePicture}
}

func toSummaryList(in []domain.UserSummary) []userSummaryResponse {
	out := make([]userSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, toSummaryResponse(s))
	}
	return out
}

func toPostResponse(v *ports.PostView) postResponse {
	p := v.Post
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}
	comments := make([]commentResponse, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, commentResponse{ID: c.ID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return postResponse{
		ID:        p.ID,
		User:      toSummaryResponse(v.Author),
		Content:   p.Content,
		Image:     p.Image,
		Likes:     likes,
		Comments:  comments,
		Privacy:   p.Privacy,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPostList(views []*ports.PostView) []postResponse {
	out := make([]postResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toPostResponse(v))
	}
	return out
}
