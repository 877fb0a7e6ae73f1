package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"pm-system/config"
	"pm-system/internal/model"
	"pm-system/internal/repository"
	"pm-system/internal/service"
	"pm-system/internal/testutil"
	"pm-system/pkg/jwt"
	"pm-system/pkg/redis"
	"pm-system/pkg/route"
	"pm-system/pkg/text"
	"pm-system/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t, &model.User{}, &model.Message{})
	client, _ := testutil.NewRedis(t)
	ns := redis.NewNamespace(client, redis.MessageNamespace, time.Minute)

	r, err := route.NewDefaultRegistry("/api/v1").Get(route.MessageRoute)
	require.NoError(t, err)

	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "handler-secret", ExpireTime: time.Hour, Issuer: "pm-system"})
	users := repository.NewUserRepository(db)
	factory := repository.NewMessageFactory(db, text.NewRenderer(), r, ns)
	manager := websocket.NewManager()

	router := NewRouter(RouterConfig{
		BasePath:  "/api/v1",
		JWT:       jwtSvc,
		Users:     NewUserHandler(service.NewUserService(users, jwtSvc)),
		Messages:  NewMessageHandler(service.NewMessageService(factory, users, ns, manager)),
		WebSocket: websocket.NewHandler(manager, jwtSvc, config.WebSocketConfig{}),
		Checks:    checks,
		Online:    manager.OnlineCount,
	})
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// register 注册用户并返回ID和token
func (s *testServer) register(name string) (uint, string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/users/register", "", gin.H{
		"username": name,
		"email":    name + "@example.com",
		"password": "password1",
	})
	require.Equal(s.t, http.StatusOK, code, env.Message)

	var data authData
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.User.ID, data.AccessToken
}

type authData struct {
	User struct {
		ID uint `json:"id"`
	} `json:"user"`
	AccessToken string `json:"access_token"`
}

type listData struct {
	Items []service.MessageView `json:"items"`
	Count int                   `json:"count"`
}

func TestMessageFlow(t *testing.T) {
	s := newTestServer(t, nil)
	aliceID, alice := s.register("alice")
	bobID, bob := s.register("bob")
	_, carol := s.register("carol")

	code, _ := s.do(http.MethodGet, "/api/v1/message/inbox", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(http.MethodPost, "/api/v1/message/compose", alice, gin.H{
		"recipient": bobID,
		"subject":   "<b>Hi</b>",
		"body":      "hello\nworld",
		"format":    text.FormatPlainText,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var sent service.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Equal(t, "Hi", sent.Subject)
	assert.Equal(t, "hello<br />\nworld", sent.Body)
	assert.Equal(t, model.StatusSent, sent.Status)
	id := strconv.FormatUint(uint64(sent.ID), 10)
	assert.Equal(t, "/api/v1/message/view/"+id, sent.URL)
	assert.Equal(t, "/api/v1/message/delete/"+id, sent.DeleteURL)

	code, env = s.do(http.MethodGet, "/api/v1/message/inbox?dir=asc", bob, nil)
	require.Equal(t, http.StatusOK, code)
	var inbox listData
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	require.Equal(t, 1, inbox.Count)
	assert.Equal(t, "alice", inbox.Items[0].SenderName)

	code, _ = s.do(http.MethodGet, "/api/v1/message/view/"+id, bob, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/v1/message/view/"+id, carol, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/api/v1/message/view/abc", bob, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPut, "/api/v1/message/edit/"+id, alice, gin.H{"subject": "x", "body": "y"})
	assert.Equal(t, http.StatusBadRequest, code, "sent messages are not editable")

	code, _ = s.do(http.MethodDelete, "/api/v1/message/delete/"+id, bob, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/v1/message/view/"+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/api/v1/message/compose", alice, gin.H{"recipient": aliceID, "subject": "a", "body": "b"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDraftFlow(t *testing.T) {
	s := newTestServer(t, nil)
	_, alice := s.register("alice")
	bobID, bob := s.register("bob")

	code, env := s.do(http.MethodPost, "/api/v1/message/compose", alice, gin.H{"recipient": bobID, "draft": true})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var draft service.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &draft))
	id := strconv.FormatUint(uint64(draft.ID), 10)

	code, env = s.do(http.MethodGet, "/api/v1/message/drafts", alice, nil)
	require.Equal(t, http.StatusOK, code)
	var drafts listData
	require.NoError(t, json.Unmarshal(env.Data, &drafts))
	assert.Equal(t, 1, drafts.Count)

	code, _ = s.do(http.MethodGet, "/api/v1/message/view/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodGet, "/api/v1/message/list", bob, nil)
	require.Equal(t, http.StatusOK, code)
	var pending listData
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Equal(t, 0, pending.Count, "unsent draft is hidden from recipient")

	code, _ = s.do(http.MethodPost, "/api/v1/message/send/"+id, alice, nil)
	assert.Equal(t, http.StatusBadRequest, code, "empty draft cannot be sent")

	code, _ = s.do(http.MethodPut, "/api/v1/message/edit/"+id, alice, gin.H{"subject": "s", "body": "**b**", "format": text.FormatMarkdown, "draft": true})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/v1/message/send/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPost, "/api/v1/message/send/"+id, alice, nil)
	require.Equal(t, http.StatusOK, code)
	var sent service.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Equal(t, model.StatusSent, sent.Status)
	assert.Contains(t, sent.Body, "<strong>b</strong>")

	code, env = s.do(http.MethodGet, "/api/v1/message/list", bob, nil)
	require.Equal(t, http.StatusOK, code)
	var all listData
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Equal(t, 1, all.Count)

	code, _ = s.do(http.MethodPost, "/api/v1/message/send/999", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	id, token := s.register("alice")

	code, _ := s.do(http.MethodPost, "/api/v1/users/register", "", gin.H{"username": "alice", "email": "other@example.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/api/v1/users/register", "", gin.H{"username": "bob", "email": "bob@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/v1/users/login", "", gin.H{"usernameOrEmail": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(http.MethodPost, "/api/v1/users/login", "", gin.H{"usernameOrEmail": "alice@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, code)
	var login authData
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, id, login.User.ID)
	assert.NotEmpty(t, login.AccessToken)

	code, env = s.do(http.MethodGet, "/api/v1/users/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"username":"alice"`)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	code, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"database":"ok"`)
	assert.Contains(t, string(env.Data), `"online":0`)

	s = newTestServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("down") },
	})
	code, env = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(env.Data), `"redis":"down"`)
}
