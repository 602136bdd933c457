package domain

import (
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- ENTITÉ ---

type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	ProfilePicture string
	Friends        []string // IDs des amis (lien dirigé : User -> Friend)
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserSummary est la projection publique d'un user (auteur d'un post, liste d'amis...).
type UserSummary struct {
	ID             string
	Username       string
	ProfilePicture string
}

// --- FACTORY ---

// NewUser crée une nouvelle instance valide.
// C'est le SEUL moyen de créer un user proprement (avec ID et Validation).
func NewUser(username, email, passwordHash string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(), // L'identité est générée ICI, pas en DB
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Friends:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// --- COMPORTEMENTS ---

// Summary projette le user sans aucune donnée sensible.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

func (u *User) HasFriend(id string) bool {
	return slices.Contains(u.Friends, id)
}

// AddFriend est idempotent et refuse l'auto-amitié.
func (u *User) AddFriend(friendID string) error {
	if friendID == u.ID {
		return ErrSelfFriend
	}
	if !u.HasFriend(friendID) {
		u.Friends = append(u.Friends, friendID)
		u.touch()
	}
	return nil
}

func (u *User) SetProfilePicture(ref string) {
	u.ProfilePicture = strings.TrimSpace(ref)
	u.touch()
}

func (u *User) touch() {
	u.UpdatedAt = time.Now().UTC()
}

// --- VALIDATEURS ---

// NormalizeEmail valide le format et renvoie la forme canonique (minuscules).
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
