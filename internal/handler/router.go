package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/habitly/internal/middleware"
	"github.com/hitoshi/habitly/internal/validation"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder
	TokenVerifier     middleware.TokenVerifier
	UserFinder        middleware.UserFinder
	RateLimiter       *middleware.RateLimiter
	Validator         *validation.Validator
	CORSAllowedOrigin string

	// サービス
	AuthService  AuthServiceInterface
	HabitService HabitServiceInterface
	TagLister    TagListerInterface

	// Prometheusスクレイプ用のハンドラー。nilの場合/metricsは公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging →
//	  認証エンドポイント: RateLimit(Auth, IPキー) → Validation(Body)
//	  認証済みエンドポイント: Auth → RateLimit(General, ユーザーIDキー) → Validation
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))

	authHandler := NewAuthHandler(deps.AuthService)
	habitHandler := NewHabitHandler(deps.HabitService)
	tagHandler := NewTagHandler(deps.TagLister)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 登録・ログイン（IPキーのレート制限 + スキーマ検証）
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthEndpointMiddleware())

		r.With(deps.Validator.Body(validation.SchemaRegister)).Post("/register", authHandler.Register)
		r.With(deps.Validator.Body(validation.SchemaLogin)).Post("/login", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 習慣管理
		r.Route("/api/habits", func(r chi.Router) {
			r.With(deps.Validator.Body(validation.SchemaHabitCreate)).Post("/", habitHandler.Create)
			r.Get("/", habitHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.With(
					deps.Validator.Params(validation.SchemaHabitParams, "id"),
					deps.Validator.Body(validation.SchemaHabitUpdate),
				).Put("/", habitHandler.Update)
				// PATCHもPUTと同じ部分更新セマンティクスで受け付ける
				r.With(
					deps.Validator.Params(validation.SchemaHabitParams, "id"),
					deps.Validator.Body(validation.SchemaHabitUpdate),
				).Patch("/", habitHandler.Update)
			})
		})

		// タグ参照
		r.Get("/api/tags", tagHandler.List)
	})

	return r
}
