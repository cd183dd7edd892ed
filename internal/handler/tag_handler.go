package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/habitly/internal/model"
)

// TagListerInterface はタグハンドラーが必要とする読み取りインターフェース。
type TagListerInterface interface {
	// ListAll は全タグをname昇順で返す。
	ListAll(ctx context.Context) ([]model.Tag, error)
}

// TagHandler はタグ参照のHTTPハンドラー。
// タグはシードデータとして管理されるため読み取り専用。
type TagHandler struct {
	lister TagListerInterface
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(lister TagListerInterface) *TagHandler {
	return &TagHandler{lister: lister}
}

// tagListResponse はタグ一覧のレスポンス。
type tagListResponse struct {
	Tags []model.Tag `json:"tags"`
}

// List は利用可能な全タグを返す。
// GET /api/tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.lister.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tagListResponse{Tags: tags})
}
