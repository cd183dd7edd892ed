package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/habitly/internal/auth"
	"github.com/hitoshi/habitly/internal/middleware"
	"github.com/hitoshi/habitly/internal/model"
	"github.com/hitoshi/habitly/internal/token"
	"github.com/hitoshi/habitly/internal/validation"
)

// mockRouterVerifier はmiddleware.TokenVerifierのモック実装。
// "valid-token"のみを受理する。
type mockRouterVerifier struct{}

func (m *mockRouterVerifier) Verify(tokenString string) (*token.Claims, error) {
	if tokenString == "valid-token" {
		return &token.Claims{UserID: "user-123", Email: "alice@example.com", Username: "alice"}, nil
	}
	if tokenString == "" {
		return nil, token.ErrTokenMissing
	}
	return nil, token.ErrTokenInvalidSignature
}

// mockRouterUserFinder はmiddleware.UserFinderのモック実装。
// 任意のトークン主体が存在するとみなす。
type mockRouterUserFinder struct{}

func (m *mockRouterUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return &model.User{ID: id}, nil
}

// newTestRouter はテスト用の依存関係でルーターを構築する。
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	v, err := validation.New()
	if err != nil {
		t.Fatalf("validation.New() error = %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	authSvc := &mockAuthService{
		registerFn: func(ctx context.Context, input auth.RegisterInput) (*auth.AuthResult, error) {
			return &auth.AuthResult{
				User:  model.PublicUser{ID: "user-123", Email: input.Email},
				Token: "issued-token",
			}, nil
		},
	}

	deps := &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		TokenVerifier:     &mockRouterVerifier{},
		UserFinder:        &mockRouterUserFinder{},
		RateLimiter:       rl,
		Validator:         v,
		CORSAllowedOrigin: "http://localhost:3000",

		AuthService:  authSvc,
		HabitService: &mockHabitService{},
		TagLister:    &mockTagLister{},
	}

	return NewRouter(deps)
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestRouter_HabitsWithoutToken_Returns401(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/habits", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_HabitsWithValidToken_Returns200(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/habits", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_RegisterValidBody_Returns201(t *testing.T) {
	router := newTestRouter(t)

	body := `{"email":"alice@example.com","username":"alice","password":"password123","firstName":"Alice","lastName":"Yamada"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestRouter_RegisterInvalidBody_Returns400(t *testing.T) {
	router := newTestRouter(t)

	// passwordが短すぎる
	body := `{"email":"alice@example.com","username":"alice","password":"short","firstName":"Alice","lastName":"Yamada"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestRouter_UpdateHabitInvalidID_Returns400(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/habits/not-a-uuid", strings.NewReader(`{"name":"Run"}`))
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestRouter_TagsRequireAuthentication(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d without token", w.Result().StatusCode, http.StatusUnauthorized)
	}

	reqAuth := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	reqAuth.Header.Set("Authorization", "Bearer valid-token")
	wAuth := httptest.NewRecorder()
	router.ServeHTTP(wAuth, reqAuth)

	if wAuth.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d with token", wAuth.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_CORSHeadersApplied(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want configured origin", got)
	}
	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_MetricsEndpointExposedWhenConfigured(t *testing.T) {
	v, err := validation.New()
	if err != nil {
		t.Fatalf("validation.New() error = %v", err)
	}
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		TokenVerifier: &mockRouterVerifier{},
		UserFinder:    &mockRouterUserFinder{},
		RateLimiter:   rl,
		Validator:     v,

		AuthService:  &mockAuthService{},
		HabitService: &mockHabitService{},
		TagLister:    &mockTagLister{},

		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("metrics"))
		}),
	}

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	if !bytes.Equal(body, []byte("metrics")) {
		t.Errorf("body = %q, want %q", body, "metrics")
	}
}
