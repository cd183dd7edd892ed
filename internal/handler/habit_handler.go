package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/habitly/internal/habit"
	"github.com/hitoshi/habitly/internal/middleware"
	"github.com/hitoshi/habitly/internal/model"
	"github.com/hitoshi/habitly/internal/validation"
)

// HabitServiceInterface は習慣ハンドラーが必要とするサービスインターフェース。
type HabitServiceInterface interface {
	// Create は習慣とタグ紐付けを作成する。
	Create(ctx context.Context, ownerID string, input habit.CreateInput) (*model.Habit, error)
	// List は呼び出し元が所有する全習慣をタグ付きで返す。
	List(ctx context.Context, ownerID string) ([]model.Habit, error)
	// Update は所有権を確認した上で習慣を部分更新する。
	Update(ctx context.Context, ownerID, habitID string, input habit.UpdateInput) (*habit.UpdateResult, error)
}

// HabitHandler は習慣管理のHTTPハンドラー。
type HabitHandler struct {
	service HabitServiceInterface
}

// NewHabitHandler はHabitHandlerを生成する。
func NewHabitHandler(service HabitServiceInterface) *HabitHandler {
	return &HabitHandler{service: service}
}

// flexCount は数値または数字文字列のどちらでも受け付ける目標回数。
// クライアント実装によって"3"と3が混在するため、デコード時に正規化する。
type flexCount int

// UnmarshalJSON はJSON数値と数字文字列の両方をintとして解釈する。
func (f *flexCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexCount(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("targetCount must be a number or numeric string")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("targetCount must be a number or numeric string")
	}
	*f = flexCount(n)
	return nil
}

// createHabitRequest は習慣作成リクエストのボディ。
type createHabitRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Frequency   string     `json:"frequency"`
	TargetCount *flexCount `json:"targetCount"`
	TagIDs      []string   `json:"tagIds"`
}

// updateHabitRequest は習慣更新リクエストのボディ。
// nilのフィールドは「変更なし」を表す。TagIDsはnil（変更なし）と
// 空配列（全紐付け削除）を区別する。
type updateHabitRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Frequency   *string    `json:"frequency"`
	TargetCount *flexCount `json:"targetCount"`
	TagIDs      *[]string  `json:"tagIds"`
}

// habitMutationResponse は習慣作成・更新成功時のレスポンス。
type habitMutationResponse struct {
	Message string      `json:"message"`
	Habit   model.Habit `json:"habit"`
}

// habitListResponse は習慣一覧のレスポンス。
type habitListResponse struct {
	Habits []model.Habit `json:"habits"`
}

// Create は習慣作成を処理する。
// POST /api/habits
func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req createHabitRequest
	if err := validation.DecodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, habit.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		TargetCount: toIntPtr(req.TargetCount),
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(habitMutationResponse{
		Message: "Habit created",
		Habit:   *created,
	})
}

// List は呼び出し元の習慣一覧を返す。
// GET /api/habits
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	habits, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(habitListResponse{Habits: habits})
}

// Update は習慣の部分更新を処理する。
// PUT /api/habits/{id}
// 対象が存在しないか呼び出し元の所有物でない場合は、どちらか区別できない
// 空ボディの401を返す。
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	habitID := chi.URLParam(r, "id")

	var req updateHabitRequest
	if err := validation.DecodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), userID, habitID, habit.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		TargetCount: toIntPtr(req.TargetCount),
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !result.Authorized {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(habitMutationResponse{
		Message: "Habit was updated",
		Habit:   *result.Habit,
	})
}

// toIntPtr はflexCountのポインタを通常のintポインタに変換する。
func toIntPtr(f *flexCount) *int {
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
