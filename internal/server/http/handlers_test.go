package internalhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aokihara/eventboard/internal/app"
	"github.com/aokihara/eventboard/internal/auth"
	"github.com/aokihara/eventboard/internal/feed"
	"github.com/aokihara/eventboard/internal/storage"
	memorystorage "github.com/aokihara/eventboard/internal/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const templatesGlob = "../../../web/templates/*.html"

type testEnv struct {
	router  *gin.Engine
	storage *memorystorage.Storage
	auth    *auth.Auth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stor := memorystorage.New()
	hub := feed.NewHub(stor)
	application := app.New(stor, hub)
	authService := auth.New(auth.Config{SessionTTL: time.Hour}, stor)

	s := NewServer(Config{TemplatesGlob: templatesGlob}, application, authService, hub, nil)
	return &testEnv{router: s.router(), storage: stor, auth: authService}
}

func (env *testEnv) registerUser(t *testing.T, email string) (storage.User, *http.Cookie) {
	t.Helper()
	ctx := context.Background()

	inviteID := "invite-" + email
	env.storage.SeedInvitation(inviteID)
	user, err := env.auth.Register(ctx, auth.RegisterParams{
		Email:           email,
		DisplayName:     "Tester",
		Password:        "secret-pass",
		ConfirmPassword: "secret-pass",
		InvitationID:    inviteID,
	})
	require.NoError(t, err)

	session, err := env.auth.CreateSessionFor(ctx, user.ID)
	require.NoError(t, err)
	return user, &http.Cookie{Name: sessionCookie, Value: session.Token}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target string, body interface{}, cookie *http.Cookie) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func eventPayload(date string) map[string]string {
	return map[string]string{
		"title":    "spring meetup",
		"type":     "Social",
		"location": "main hall",
		"date":     date,
	}
}

func TestSessionGating(t *testing.T) {
	env := newTestEnv(t)

	t.Run("dashboard redirects to login without a session", func(t *testing.T) {
		w := env.do(httptest.NewRequest("GET", "/dashboard", nil))
		require.Equal(t, http.StatusSeeOther, w.Code)
		require.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("api responds 401 without a session", func(t *testing.T) {
		w := env.do(httptest.NewRequest("GET", "/api/events", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("dashboard renders for a signed-in user", func(t *testing.T) {
		_, cookie := env.registerUser(t, "a@example.com")
		req := httptest.NewRequest("GET", "/dashboard", nil)
		req.AddCookie(cookie)
		w := env.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "Tester")
	})
}

func TestRegistrationRoutes(t *testing.T) {
	t.Run("missing invitation renders the rejection panel, never the form", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(httptest.NewRequest("GET", "/register?uid=never-existed", nil))
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Contains(t, w.Body.String(), "Invalid invitation")
		require.NotContains(t, w.Body.String(), "Create your account")
	})

	t.Run("absent uid is invalid too", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(httptest.NewRequest("GET", "/register", nil))
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid invitation shows the form", func(t *testing.T) {
		env := newTestEnv(t)
		env.storage.SeedInvitation("fresh")
		w := env.do(httptest.NewRequest("GET", "/register?uid=fresh", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "Create your account")
	})

	t.Run("password mismatch re-renders with the mapped message", func(t *testing.T) {
		env := newTestEnv(t)
		env.storage.SeedInvitation("fresh")

		form := url.Values{
			"uid":             {"fresh"},
			"email":           {"a@example.com"},
			"displayName":     {"A"},
			"password":        {"secret-pass"},
			"confirmPassword": {"different"},
		}
		req := httptest.NewRequest("POST", "/register", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := env.do(req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "Passwords do not match.")

		// no account was created and the invitation is still fresh
		_, err := env.storage.GetUserByEmail(context.Background(), "a@example.com")
		require.ErrorIs(t, err, storage.ErrNotFoundUser)
		invitation, err := env.storage.GetInvitation(context.Background(), "fresh")
		require.NoError(t, err)
		require.False(t, invitation.Used)
	})

	t.Run("successful registration signs the user in", func(t *testing.T) {
		env := newTestEnv(t)
		env.storage.SeedInvitation("fresh")

		form := url.Values{
			"uid":             {"fresh"},
			"email":           {"a@example.com"},
			"displayName":     {"A"},
			"password":        {"secret-pass"},
			"confirmPassword": {"secret-pass"},
		}
		req := httptest.NewRequest("POST", "/register", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := env.do(req)

		require.Equal(t, http.StatusSeeOther, w.Code)
		require.Equal(t, "/dashboard", w.Header().Get("Location"))

		invitation, err := env.storage.GetInvitation(context.Background(), "fresh")
		require.NoError(t, err)
		require.True(t, invitation.Used)
	})
}

func TestEventValidation(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.registerUser(t, "a@example.com")
	date := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	t.Run("unparseable date is rejected before any write", func(t *testing.T) {
		w := env.do(jsonRequest("POST", "/api/events", eventPayload("not-a-date"), cookie))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "Select a valid date.")

		events, err := env.storage.ListEvents(context.Background())
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("malformed url is rejected", func(t *testing.T) {
		payload := eventPayload(date)
		payload["url"] = "not-a-url"
		w := env.do(jsonRequest("POST", "/api/events", payload, cookie))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "Enter a valid URL")
	})

	t.Run("well-formed url is accepted", func(t *testing.T) {
		payload := eventPayload(date)
		payload["url"] = "https://example.com"
		w := env.do(jsonRequest("POST", "/api/events", payload, cookie))
		require.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("custom type wins over selected type", func(t *testing.T) {
		payload := eventPayload(date)
		payload["customType"] = "Hackathon"
		w := env.do(jsonRequest("POST", "/api/events", payload, cookie))
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Event storage.Event `json:"event"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "Hackathon", resp.Event.Type)
		require.Equal(t, "Tester", resp.Event.OwnerName)
	})
}

func TestEventOwnership(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.registerUser(t, "owner@example.com")
	_, intruder := env.registerUser(t, "intruder@example.com")
	date := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	w := env.do(jsonRequest("POST", "/api/events", eventPayload(date), owner))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Event storage.Event `json:"event"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := resp.Event.ID

	t.Run("non-owner update is forbidden", func(t *testing.T) {
		w := env.do(jsonRequest("PUT", "/api/events/"+id, eventPayload(date), intruder))
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Contains(t, w.Body.String(), "permission")
	})

	t.Run("non-owner delete is forbidden", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/events/"+id, nil)
		req.AddCookie(intruder)
		w := env.do(req)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing event is 404", func(t *testing.T) {
		w := env.do(jsonRequest("PUT", "/api/events/never-existed", eventPayload(date), owner))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner update and delete succeed", func(t *testing.T) {
		w := env.do(jsonRequest("PUT", "/api/events/"+id, eventPayload(date), owner))
		require.Equal(t, http.StatusOK, w.Code)

		req := httptest.NewRequest("DELETE", "/api/events/"+id, nil)
		req.AddCookie(owner)
		w = env.do(req)
		require.Equal(t, http.StatusOK, w.Code)

		events, err := env.storage.ListEvents(context.Background())
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestLoginRoute(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "a@example.com")

	t.Run("bad credentials re-render the login view", func(t *testing.T) {
		form := url.Values{"email": {"a@example.com"}, "password": {"wrong"}}
		req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := env.do(req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Body.String(), "Email or password is incorrect.")
	})

	t.Run("good credentials set the session cookie", func(t *testing.T) {
		form := url.Values{"email": {"a@example.com"}, "password": {"secret-pass"}}
		req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := env.do(req)
		require.Equal(t, http.StatusSeeOther, w.Code)
		require.Equal(t, "/dashboard", w.Header().Get("Location"))
		require.Contains(t, w.Header().Get("Set-Cookie"), sessionCookie+"=")
	})
}

func TestDegradedMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{TemplatesGlob: templatesGlob}, nil, nil, nil,
		context.DeadlineExceeded)
	router := s.router()

	for _, path := range []string{"/", "/dashboard", "/api/events"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code, "path %s", path)
		require.Contains(t, w.Body.String(), "Initialization error")
	}
}
