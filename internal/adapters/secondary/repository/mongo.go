package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

const (
	usersCollection = "users"
	postsCollection = "posts"

	emailIndex    = "users_email_unique"
	usernameIndex = "users_username_unique"

	// NamespaceExists : la collection est déjà là
	mongoCodeNamespaceExists = 48
)

// DTOs internes : les tags bson restent hors du Domaine.
type userDoc struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	Email          string    `bson:"email"`
	Password       string    `bson:"password"`
	ProfilePicture string    `bson:"profilePicture,omitempty"`
	Friends        []string  `bson:"friends"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

type commentDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
}

type postDoc struct {
	ID        string       `bson:"_id"`
	UserID    string       `bson:"userId"`
	Content   string       `bson:"content"`
	Image     string       `bson:"image,omitempty"`
	Likes     []string     `bson:"likes"`
	Comments  []commentDoc `bson:"comments"`
	Privacy   string       `bson:"privacy"`
	CreatedAt time.Time    `bson:"createdAt"`
	UpdatedAt time.Time    `bson:"updatedAt"`
}

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore prend un client déjà connecté (cf. main.go).
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName)}
}

func (s *MongoStore) Users() ports.UserRepository {
	return &mongoUsers{coll: s.db.Collection(usersCollection)}
}

func (s *MongoStore) Posts() ports.PostRepository {
	return &mongoPosts{coll: s.db.Collection(postsCollection)}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureSchema crée les collections avec leur validateur $jsonSchema et les
// index (Idempotent).
func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	if err := s.ensureCollection(ctx, usersCollection, userSchema()); err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, postsCollection, postSchema()); err != nil {
		return err
	}

	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
	})
	if err != nil {
		return fmt.Errorf("mongo: users indexes: %w", err)
	}

	_, err = s.db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: posts indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) ensureCollection(ctx context.Context, name string, validator bson.M) error {
	err := s.db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(validator))
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || !cmdErr.HasErrorCode(mongoCodeNamespaceExists) {
		return fmt.Errorf("mongo: create %s: %w", name, err)
	}

	// Déjà présente : on remet le validateur à jour
	cmd := bson.D{{Key: "collMod", Value: name}, {Key: "validator", Value: validator}}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("mongo: collMod %s: %w", name, err)
	}
	return nil
}

func userSchema() bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"_id", "username", "email", "password", "friends"},
		"properties": bson.M{
			"username":       bson.M{"bsonType": "string", "minLength": 1},
			"email":          bson.M{"bsonType": "string", "minLength": 3},
			"password":       bson.M{"bsonType": "string"},
			"profilePicture": bson.M{"bsonType": "string"},
			"friends":        bson.M{"bsonType": "array", "uniqueItems": true, "items": bson.M{"bsonType": "string"}},
		},
	}}
}

func postSchema() bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"_id", "userId", "content", "privacy", "likes", "comments"},
		"properties": bson.M{
			"userId":  bson.M{"bsonType": "string"},
			"content": bson.M{"bsonType": "string", "minLength": 1},
			"image":   bson.M{"bsonType": "string"},
			"privacy": bson.M{"enum": bson.A{string(domain.PrivacyPublic), string(domain.PrivacyFriends), string(domain.PrivacyPrivate)}},
			"likes":   bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
			"comments": bson.M{"bsonType": "array", "items": bson.M{
				"bsonType": "object",
				"required": bson.A{"userId", "text"},
				"properties": bson.M{
					"userId": bson.M{"bsonType": "string"},
					"text":   bson.M{"bsonType": "string", "minLength": 1},
				},
			}},
		},
	}}
}

// --- USERS ---

type mongoUsers struct {
	coll *mongo.Collection
}

func (r *mongoUsers) Save(ctx context.Context, user *domain.User) error {
	if _, err := r.coll.InsertOne(ctx, userToDoc(user)); err != nil {
		return r.handleError(err)
	}
	return nil
}

func (r *mongoUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}}, "get by id")
}

func (r *mongoUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}}, "get by email")
}

func (r *mongoUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}}, "get by username")
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.D, op string) (*domain.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound // Traduction technique -> Domaine
		}
		return nil, fmt.Errorf("mongo: %s: %w", op, err)
	}
	return docToUser(&doc), nil
}

func (r *mongoUsers) GetMany(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	return r.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, nil)
}

func (r *mongoUsers) ListExcept(ctx context.Context, excludeID string) ([]*domain.User, error) {
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoUsers) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*domain.User, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode users: %w", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docToUser(&docs[i]))
	}
	return users, nil
}

// AddFriend : $addToSet est atomique et idempotent.
func (r *mongoUsers) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return domain.ErrSelfFriend
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "friends", Value: friendID}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
		},
	)
	if err != nil {
		return fmt.Errorf("mongo: add friend: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *mongoUsers) UpdateProfilePicture(ctx context.Context, userID, ref string) (*domain.User, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "profilePicture", Value: ref},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: userID}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo: update profile picture: %w", err)
	}
	return docToUser(&doc), nil
}

// handleError traduit les erreurs d'index unique en erreurs du Domaine
func (r *mongoUsers) handleError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), usernameIndex) {
			return domain.ErrUsernameTaken
		}
		return domain.ErrEmailAlreadyExists
	}
	return fmt.Errorf("mongo: insert user: %w", err)
}

// --- POSTS ---

type mongoPosts struct {
	coll *mongo.Collection
}

func (r *mongoPosts) Save(ctx context.Context, post *domain.Post) error {
	if _, err := r.coll.InsertOne(ctx, postToDoc(post)); err != nil {
		return fmt.Errorf("mongo: insert post: %w", err)
	}
	return nil
}

func (r *mongoPosts) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	var doc postDoc
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: postID}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("mongo: find post: %w", err)
	}
	return docToPost(&doc), nil
}

func (r *mongoPosts) List(ctx context.Context) ([]*domain.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list posts: %w", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode posts: %w", err)
	}

	posts := make([]*domain.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docToPost(&docs[i]))
	}
	return posts, nil
}

// ToggleLike bascule l'appartenance en UNE mise à jour (pipeline d'agrégation) :
// pas de fenêtre entre lecture et écriture, donc pas de lost update.
func (r *mongoPosts) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	uid := bson.D{{Key: "$literal", Value: userID}}
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}

	toggled := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$in", Value: bson.A{uid, likes}}},
		bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: likes},
			{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", uid}}}},
		}}},
		bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{uid}}}},
	}}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: toggled},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	}
	return r.findOneAndUpdate(ctx, postID, pipeline, "toggle like")
}

func (r *mongoPosts) AddComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error) {
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "comments", Value: commentToDoc(comment)}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
	}
	return r.findOneAndUpdate(ctx, postID, update, "add comment")
}

func (r *mongoPosts) findOneAndUpdate(ctx context.Context, postID string, update any, op string) (*domain.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: postID}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("mongo: %s: %w", op, err)
	}
	return docToPost(&doc), nil
}

// Delete est conditionnel au propriétaire : {_id, userId}.
func (r *mongoPosts) Delete(ctx context.Context, postID, ownerID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: postID},
		{Key: "userId", Value: ownerID},
	})
	if err != nil {
		return fmt.Errorf("mongo: delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// --- MAPPERS ---

func userToDoc(u *domain.User) *userDoc {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}
	return &userDoc{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Password:       u.PasswordHash,
		ProfilePicture: u.ProfilePicture,
		Friends:        friends,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func docToUser(d *userDoc) *domain.User {
	friends := d.Friends
	if friends == nil {
		friends = []string{}
	}
	return &domain.User{
		ID:             d.ID,
		Username:       d.Username,
		Email:          d.Email,
		PasswordHash:   d.Password,
		ProfilePicture: d.ProfilePicture,
		Friends:        friends,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func commentToDoc(c domain.Comment) commentDoc {
	return commentDoc{ID: c.ID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt}
}

func postToDoc(p *domain.Post) *postDoc {
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}
	comments := make([]commentDoc, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = commentToDoc(c)
	}
	return &postDoc{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		Image:     p.Image,
		Likes:     likes,
		Comments:  comments,
		Privacy:   string(p.Privacy),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func docToPost(d *postDoc) *domain.Post {
	likes := d.Likes
	if likes == nil {
		likes = []string{}
	}
	comments := make([]domain.Comment, len(d.Comments))
	for i, c := range d.Comments {
		comments[i] = domain.Comment{ID: c.ID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt}
	}
	privacy, err := domain.ParsePrivacy(d.Privacy)
	if err != nil {
		privacy = domain.PrivacyPrivate // Donnée corrompue : on ferme plutôt qu'on expose
	}
	return &domain.Post{
		ID:        d.ID,
		UserID:    d.UserID,
		Content:   d.Content,
		Image:     d.Image,
		Likes:     likes,
		Comments:  comments,
		Privacy:   privacy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
