// Package handler はHTTPリクエストの受け付けとレスポンス生成を担当する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/habitly/internal/auth"
	"github.com/hitoshi/habitly/internal/model"
	"github.com/hitoshi/habitly/internal/validation"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録し、トークンを発行する。
	Register(ctx context.Context, input auth.RegisterInput) (*auth.AuthResult, error)
	// Login はメールアドレスとパスワードで認証し、トークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
}

// AuthHandler は登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest はユーザー登録リクエストのボディ。
// スキーマ検証を通過済みのため全フィールドの存在が保証されている。
type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	Message string           `json:"message"`
	User    model.PublicUser `json:"user"`
	Token   string           `json:"token"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := validation.DecodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{
		Message: "User created",
		User:    result.User,
		Token:   result.Token,
	})
}

// Login はログインを処理する。
// POST /api/auth/login
// 認証成功は200を返す。メールアドレス不存在とパスワード不一致は
// 同一の401レスポンスになる。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := validation.DecodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(authResponse{
		Message: "Login success",
		User:    result.User,
		Token:   result.Token,
	})
}
