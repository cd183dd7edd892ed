package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/habitly/internal/middleware"
	"github.com/hitoshi/habitly/internal/model"
)

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外のエラーは詳細を隠蔽して500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeUserAlreadyExists:
		return http.StatusConflict
	default:
		// USER_CREATE_FAILED / HABIT_CREATE_FAILED / HABIT_FETCH_FAILED / HABIT_UPDATE_FAILED
		return http.StatusInternalServerError
	}
}
