package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chatgate/internal/middleware"
	"github.com/hitoshi/chatgate/internal/model"
)

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEmailRequired, model.ErrCodeInvalidEmail,
		model.ErrCodePhoneRequired, model.ErrCodeInvalidPhone,
		model.ErrCodePasswordRequired, model.ErrCodeInvalidDate, model.ErrCodeNameTooLong,
		model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeEmailTaken, model.ErrCodePhoneTaken:
		return http.StatusConflict
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeMailFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
