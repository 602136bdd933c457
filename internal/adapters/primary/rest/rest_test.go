package rest

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/session"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/services"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	tokens, err := security.NewJWTProvider("test-secret", "social-test", time.Hour)
	require.NoError(t, err)

	identity := services.NewIdentityService(store.Users(), security.NewBcryptHasher(bcrypt.MinCost), tokens, session.NewMemoryDenylist())
	h := NewHandler(identity, services.NewGraphService(store.Users()), services.NewPostService(store.Posts(), store.Users()), store, Options{
		ServiceName:    "social-test",
		AllowedOrigins: []string{"http://localhost:3000"},
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	})
	return &testServer{t: t, router: h.Router()}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signup + login, renvoie (token, userID)
func (s *testServer) user(name string) (string, string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/signup", gin.H{"username": name, "email": name + "@example.com", "password": "pw-" + name}, "")
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/login", gin.H{"email": name + "@example.com", "password": "pw-" + name}, "")
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[loginResponse](s.t, w)
	return resp.Token, resp.User.ID
}

func (s *testServer) post(token string, body gin.H) postResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/posts", body, token)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[postResponse](s.t, w)
}

func TestSignupRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	s.user("alice")

	w := s.do(http.MethodPost, "/signup", gin.H{"username": "other", "email": "alice@example.com", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email")

	w = s.do(http.MethodPost, "/signup", gin.H{"username": "alice", "email": "new@example.com", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username")

	w = s.do(http.MethodPost, "/signup", gin.H{"username": "bob", "email": "nope", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginIssuesOneHourToken(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.user("alice")

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, userID, claims["id"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	iat, err := claims.GetIssuedAt()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, exp.Sub(iat.Time))
}

func TestLoginFailuresAreBadRequest(t *testing.T) {
	s := newTestServer(t)
	s.user("alice")

	w := s.do(http.MethodPost, "/login", gin.H{"email": "ghost@example.com", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/login", gin.H{"email": "alice@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordNeverLeaks(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.user("alice")

	w := s.do(http.MethodPost, "/login", gin.H{"email": "alice@example.com", "password": "pw-alice"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")

	w = s.do(http.MethodGet, "/user/"+userID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPut, "/users/"+userID+"/profile-picture", gin.H{"profilePicture": "/uploads/a.png"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/posts", gin.H{"content": "hi"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/posts", gin.H{"content": "hi"}, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePostPopulatesOwner(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.user("alice")

	p := s.post(token, gin.H{"content": "hello", "image": "/uploads/x.png"})
	assert.Equal(t, "alice", p.User.Username)
	assert.Equal(t, userID, p.User.ID)
	assert.Equal(t, "public", string(p.Privacy))
	assert.Empty(t, p.Likes)

	w := s.do(http.MethodPost, "/posts", gin.H{"userId": "someone-else", "content": "spoof"}, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/posts", gin.H{"content": ""}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	list := decode[[]postResponse](t, s.do(http.MethodGet, "/posts", nil, ""))
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].User.Username)
}

func TestLikeTwiceRestoresState(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.user("alice")
	bobToken, bobID := s.user("bob")
	p := s.post(aliceToken, gin.H{"content": "hello"})

	w := s.do(http.MethodPost, "/post/like", gin.H{"postId": p.ID}, bobToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{bobID}, decode[postResponse](t, w).Likes)

	w = s.do(http.MethodPost, "/post/like", gin.H{"userId": bobID, "postId": p.ID}, bobToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[postResponse](t, w).Likes)

	w = s.do(http.MethodPost, "/post/like", gin.H{"postId": "ghost"}, bobToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommentOnPost(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.user("alice")
	bobToken, bobID := s.user("bob")
	p := s.post(aliceToken, gin.H{"content": "hello"})

	w := s.do(http.MethodPost, "/posts/"+p.ID+"/comments", gin.H{"text": "nice"}, bobToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[postResponse](t, w)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, bobID, got.Comments[0].UserID)

	w = s.do(http.MethodPost, "/posts/"+p.ID+"/comments", gin.H{"text": ""}, bobToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeletePostOwnerOnly(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.user("alice")
	bobToken, _ := s.user("bob")
	p := s.post(aliceToken, gin.H{"content": "hello"})

	w := s.do(http.MethodDelete, "/posts/"+p.ID, nil, bobToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, decode[[]postResponse](t, s.do(http.MethodGet, "/posts", nil, "")), 1)

	w = s.do(http.MethodDelete, "/posts/"+p.ID, nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, p.ID, decode[map[string]string](t, w)["postId"])
	assert.Empty(t, decode[[]postResponse](t, s.do(http.MethodGet, "/posts", nil, "")))

	w = s.do(http.MethodDelete, "/posts/"+p.ID, nil, aliceToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddFriendTwiceKeepsOneEntry(t *testing.T) {
	s := newTestServer(t)
	aliceToken, aliceID := s.user("alice")
	_, bobID := s.user("bob")

	for range 2 {
		w := s.do(http.MethodPost, "/add-friend", gin.H{"friendId": bobID}, aliceToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	user := decode[userResponse](t, s.do(http.MethodGet, "/user/"+aliceID, nil, ""))
	assert.Equal(t, []string{bobID}, user.Friends)

	friends := decode[[]userSummaryResponse](t, s.do(http.MethodGet, "/user/"+aliceID+"/friends", nil, ""))
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)

	w := s.do(http.MethodPost, "/add-friend", gin.H{"friendId": aliceID}, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/add-friend", gin.H{"friendId": "ghost"}, aliceToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/user/ghost/friends", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListUsersExcludesCaller(t *testing.T) {
	s := newTestServer(t)
	aliceToken, aliceID := s.user("alice")
	_, bobID := s.user("bob")

	users := decode[[]userSummaryResponse](t, s.do(http.MethodGet, "/users", nil, aliceToken))
	require.Len(t, users, 1)
	assert.Equal(t, bobID, users[0].ID)

	w := s.do(http.MethodGet, "/users?userId="+aliceID, nil, aliceToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/users?userId="+bobID, nil, aliceToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPostsArePrivacyFiltered(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.user("alice")
	bobToken, bobID := s.user("bob")
	carolToken, _ := s.user("carol")

	s.post(aliceToken, gin.H{"content": "for all", "privacy": "public"})
	s.post(aliceToken, gin.H{"content": "for friends", "privacy": "friends"})
	s.post(aliceToken, gin.H{"content": "for me", "privacy": "private"})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/add-friend", gin.H{"friendId": bobID}, aliceToken).Code)

	count := func(token string) int {
		w := s.do(http.MethodGet, "/posts", nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		return len(decode[[]postResponse](t, w))
	}
	assert.Equal(t, 3, count(aliceToken))
	assert.Equal(t, 2, count(bobToken))
	assert.Equal(t, 1, count(carolToken))
	assert.Equal(t, 1, count(""))

	w := s.do(http.MethodPost, "/posts", gin.H{"content": "x", "privacy": "secret"}, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfilePictureOwnerOnly(t *testing.T) {
	s := newTestServer(t)
	_, aliceID := s.user("alice")
	bobToken, _ := s.user("bob")

	w := s.do(http.MethodPut, "/users/"+aliceID+"/profile-picture", gin.H{"profilePicture": "/uploads/x.png"}, bobToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/users/ghost/profile-picture", gin.H{"profilePicture": "/uploads/x.png"}, bobToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/user/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.user("alice")

	w := s.do(http.MethodPost, "/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/users", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadAndServe(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.user("alice")

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := upload("avatar.png", png)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	path := decode[map[string]string](t, w)["path"]
	assert.True(t, strings.HasPrefix(path, "/uploads/"))
	assert.True(t, strings.HasSuffix(path, ".png"))

	got := s.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, png, got.Body.Bytes())

	w = upload("notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("fake.png", []byte("just text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s := newTestServer(t)
	h := HTTPHandler(s.router, Options{ServiceName: "social-test", AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
