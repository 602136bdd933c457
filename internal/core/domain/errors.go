package domain

import "errors"

// --- ERREURS DU DOMAINE ---
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("forbidden")
	ErrSelfFriend         = errors.New("cannot add yourself as a friend")

	// Validation
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidUsername = errors.New("username is required")
	ErrWeakPassword    = errors.New("password is required")
	ErrEmptyContent    = errors.New("content is required")
	ErrEmptyComment    = errors.New("comment text is required")
	ErrInvalidPrivacy  = errors.New("privacy must be one of public, friends, private")
)

// IsValidation indique si l'erreur vient d'une règle métier bloquante (-> 400).
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidEmail, ErrInvalidUsername, ErrWeakPassword,
		ErrEmptyContent, ErrEmptyComment, ErrInvalidPrivacy, ErrSelfFriend,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict couvre les violations d'unicité.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrUsernameTaken)
}
