package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyPrivate Privacy = "private"
)

// ParsePrivacy accepte la casse libre ; vide = public.
func ParsePrivacy(raw string) (Privacy, error) {
	switch p := Privacy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PrivacyPublic, nil
	case PrivacyPublic, PrivacyFriends, PrivacyPrivate:
		return p, nil
	default:
		return "", ErrInvalidPrivacy
	}
}

type Comment struct {
	ID        string
	UserID    string
	Text      string
	CreatedAt time.Time
}

type Post struct {
	ID        string
	UserID    string // Propriétaire, immuable après création
	Content   string
	Image     string
	Likes     []string // Ensemble d'IDs, l'appartenance compte, pas le nombre
	Comments  []Comment
	Privacy   Privacy
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPost(userID, content, image string, privacy Privacy) (*Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if privacy == "" {
		privacy = PrivacyPublic
	}

	now := time.Now().UTC()
	return &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Image:     strings.TrimSpace(image),
		Likes:     []string{},
		Comments:  []Comment{},
		Privacy:   privacy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func NewComment(userID, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrEmptyComment
	}
	return Comment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (p *Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// ToggleLike ajoute ou retire userID de la liste des likes.
// Les adapters de stockage font la même chose en une seule opération atomique.
func (p *Post) ToggleLike(userID string) {
	if i := slices.Index(p.Likes, userID); i >= 0 {
		p.Likes = slices.Delete(p.Likes, i, i+1)
	} else {
		p.Likes = append(p.Likes, userID)
	}
	p.UpdatedAt = time.Now().UTC()
}

// VisibleTo applique la règle de confidentialité. owner est l'auteur du post
// (nil si introuvable), viewerID est vide pour un visiteur anonyme.
func (p *Post) VisibleTo(viewerID string, owner *User) bool {
	if viewerID != "" && viewerID == p.UserID {
		return true
	}
	switch p.Privacy {
	case PrivacyPublic, "":
		return true
	case PrivacyFriends:
		return viewerID != "" && owner != nil && owner.HasFriend(viewerID)
	default:
		return false
	}
}
