package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatgate/internal/account"
	"github.com/hitoshi/chatgate/internal/middleware"
	"github.com/hitoshi/chatgate/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Register はユーザーを登録し、認証コードをメールで送信する。
	Register(ctx context.Context, in account.RegisterInput) (*account.Account, error)
	// GetUser はユーザーとプロフィールを取得する。
	GetUser(ctx context.Context, id string) (*account.Account, error)
	// IssueVerificationCode は認証コードを再発行して送信する。
	IssueVerificationCode(ctx context.Context, email string) error
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// registerRequest はアカウント登録リクエストのボディ。
type registerRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth"`
}

// verificationCodeRequest は認証コード再発行リクエストのボディ。
type verificationCodeRequest struct {
	Email string `json:"email"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュと認証コードは含めない。
type userResponse struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	PhoneNumber string           `json:"phone_number"`
	IsActive    bool             `json:"is_active"`
	IsStaff     bool             `json:"is_staff"`
	IsVerified  bool             `json:"is_verified"`
	DateJoined  time.Time        `json:"date_joined"`
	Profile     *profileResponse `json:"profile"`
}

// profileResponse はプロフィール情報のAPIレスポンス。
type profileResponse struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth"`
}

// Register はアカウント登録を処理する。
// POST /api/users
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	acc, err := h.service.Register(r.Context(), account.RegisterInput{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Address:     req.Address,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toUserResponse(acc))
}

// GetUser はユーザー情報を返す。
// GET /api/users/{id}
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toUserResponse(acc))
}

// IssueVerificationCode は認証コードの再発行を受け付ける。
// POST /api/users/verification-code
func (h *AccountHandler) IssueVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req verificationCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.IssueVerificationCode(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func toUserResponse(acc *account.Account) userResponse {
	u := acc.User
	resp := userResponse{
		ID:          u.ID,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsVerified:  u.IsVerified,
		DateJoined:  u.DateJoined,
	}
	if p := acc.Profile; p != nil {
		resp.Profile = &profileResponse{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			FullName:    p.FullName(),
			Address:     p.Address,
			DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		}
	}
	return resp
}
