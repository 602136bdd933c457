package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pgUniqueViolation = "23505"

	userColumns = `id, username, email, password_hash, profile_picture, friends, created_at, updated_at`
	postColumns = `id, user_id, content, image, likes, comments, privacy, created_at, updated_at`
)

// DTO interne pour mapper le JSONB des commentaires sans tags dans le Domaine
type commentDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore prend un pool déjà configuré (otelpgx, cf. main.go).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) Users() ports.UserRepository {
	return &pgUsers{db: s.db}
}

func (s *PostgresStore) Posts() ports.PostRepository {
	return &pgPosts{db: s.db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

// Migrate applique les migrations embarquées (golang-migrate, driver pgx/v5).
func (s *PostgresStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}

	// database/sql au-dessus du pool : c'est ce qu'attend le driver de migration
	sqlDB := stdlib.OpenDBFromPool(s.db)
	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{})
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("migrations driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("migrations init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("migration state is up to date")
			return nil
		}
		return fmt.Errorf("migrations up: %w", err)
	}

	slog.Info("✅ Migrations applied")
	return nil
}

// --- USERS ---

type pgUsers struct {
	db *pgxpool.Pool
}

func (r *pgUsers) Save(ctx context.Context, user *domain.User) error {
	q := `
		INSERT INTO users (id, username, email, password_hash, profile_picture, friends, created_at, updated_at)
		VALUES (@id, @username, @email, @password_hash, @profile_picture, @friends, @created_at, @updated_at)
	`
	friends := user.Friends
	if friends == nil {
		friends = []string{}
	}

	args := pgx.NamedArgs{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"password_hash":   user.PasswordHash,
		"profile_picture": user.ProfilePicture,
		"friends":         friends,
		"created_at":      user.CreatedAt,
		"updated_at":      user.UpdatedAt,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return r.handleError(err)
	}
	return nil
}

func (r *pgUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "get user", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *pgUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "get user by email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *pgUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "get user by username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *pgUsers) getOne(ctx context.Context, op, q string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound // Traduction technique -> Domaine
		}
		return nil, fmt.Errorf("db: %s: %w", op, err)
	}
	return u, nil
}

// GetMany : batch fetch avec ANY($1)
func (r *pgUsers) GetMany(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	return r.query(ctx, "get users", `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
}

func (r *pgUsers) ListExcept(ctx context.Context, excludeID string) ([]*domain.User, error) {
	return r.query(ctx, "list users", `SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY created_at ASC`, excludeID)
}

func (r *pgUsers) query(ctx context.Context, op, q string, arg any) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("db: %s: %w", op, err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db: %s: scan: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: %s: %w", op, err)
	}
	return users, nil
}

// AddFriend : le CASE s'évalue sous le verrou de ligne de l'UPDATE, donc
// deux ajouts concurrents ne dupliquent pas l'ami.
func (r *pgUsers) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return domain.ErrSelfFriend
	}
	q := `
		UPDATE users
		SET friends = CASE WHEN $2::text = ANY(friends) THEN friends ELSE array_append(friends, $2::text) END,
		    updated_at = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, q, userID, friendID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db: add friend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *pgUsers) UpdateProfilePicture(ctx context.Context, userID, ref string) (*domain.User, error) {
	q := `UPDATE users SET profile_picture = $2, updated_at = $3 WHERE id = $1 RETURNING ` + userColumns
	return r.getOne(ctx, "update profile picture", q, userID, ref, time.Now().UTC())
}

// handleError traduit les erreurs Postgres en erreurs du Domaine
func (r *pgUsers) handleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if pgErr.ConstraintName == "users_username_key" {
			return domain.ErrUsernameTaken
		}
		return domain.ErrEmailAlreadyExists
	}
	return fmt.Errorf("db: insert user: %w", err)
}

// --- POSTS ---

type pgPosts struct {
	db *pgxpool.Pool
}

func (r *pgPosts) Save(ctx context.Context, post *domain.Post) error {
	q := `
		INSERT INTO posts (id, user_id, content, image, likes, comments, privacy, created_at, updated_at)
		VALUES (@id, @user_id, @content, @image, @likes, @comments, @privacy, @created_at, @updated_at)
	`
	commentsJSON, err := marshalComments(post.Comments)
	if err != nil {
		return fmt.Errorf("db: insert post: %w", err)
	}
	likes := post.Likes
	if likes == nil {
		likes = []string{}
	}

	args := pgx.NamedArgs{
		"id":         post.ID,
		"user_id":    post.UserID,
		"content":    post.Content,
		"image":      post.Image,
		"likes":      likes,
		"comments":   commentsJSON,
		"privacy":    string(post.Privacy),
		"created_at": post.CreatedAt,
		"updated_at": post.UpdatedAt,
	}
	if _, err = r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("db: insert post: %w", err)
	}
	return nil
}

func (r *pgPosts) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	return r.getOne(ctx, "get post", `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID)
}

func (r *pgPosts) List(ctx context.Context) ([]*domain.Post, error) {
	rows, err := r.db.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db: list posts: %w", err)
	}
	defer rows.Close()

	posts := []*domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("db: list posts: scan: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: list posts: %w", err)
	}
	return posts, nil
}

// ToggleLike : lecture et écriture dans le même UPDATE
func (r *pgPosts) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	q := `
		UPDATE posts
		SET likes = CASE
		        WHEN $2::text = ANY(likes) THEN array_remove(likes, $2::text)
		        ELSE array_append(likes, $2::text)
		    END,
		    updated_at = $3
		WHERE id = $1
		RETURNING ` + postColumns
	return r.getOne(ctx, "toggle like", q, postID, userID, time.Now().UTC())
}

func (r *pgPosts) AddComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error) {
	// jsonb || '[{...}]' ajoute en fin de tableau
	payload, err := marshalComments([]domain.Comment{comment})
	if err != nil {
		return nil, fmt.Errorf("db: add comment: %w", err)
	}
	q := `
		UPDATE posts
		SET comments = comments || $2::jsonb, updated_at = $3
		WHERE id = $1
		RETURNING ` + postColumns
	return r.getOne(ctx, "add comment", q, postID, payload, time.Now().UTC())
}

func (r *pgPosts) Delete(ctx context.Context, postID, ownerID string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM posts WHERE id = $1 AND user_id = $2", postID, ownerID)
	if err != nil {
		return fmt.Errorf("db: delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

func (r *pgPosts) getOne(ctx context.Context, op, q string, args ...any) (*domain.Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("db: %s: %w", op, err)
	}
	return p, nil
}

// --- Helpers pour éviter la duplication de code ---

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePicture, &u.Friends, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	return &u, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		p            domain.Post
		commentsJSON []byte
		privacy      string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.Image, &p.Likes, &commentsJSON, &privacy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	p.Comments = unmarshalComments(commentsJSON)

	p.Privacy, err = domain.ParsePrivacy(privacy)
	if err != nil {
		p.Privacy = domain.PrivacyPrivate
	}
	return &p, nil
}

func marshalComments(comments []domain.Comment) ([]byte, error) {
	dtos := make([]commentDTO, len(comments))
	for i, c := range comments {
		dtos[i] = commentDTO{ID: c.ID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt}
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comments: %w", err)
	}
	return data, nil
}

func unmarshalComments(data []byte) []domain.Comment {
	var dtos []commentDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return []domain.Comment{} // Fallback safe
	}

	comments := make([]domain.Comment, len(dtos))
	for i, d := range dtos {
		comments[i] = domain.Comment{ID: d.ID, UserID: d.UserID, Text: d.Text, CreatedAt: d.CreatedAt}
	}
	return comments
}
