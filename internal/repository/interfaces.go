// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/chatgate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmail はメールアドレスが登録済みかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ExistsByPhoneNumber は電話番号が登録済みかを返す。
	ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error)

	// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
	// profileがnilの場合はユーザーのみを作成する。
	// 一意制約違反は *model.APIError（EMAIL_TAKEN / PHONE_TAKEN）として返す。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error

	// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.Profile, error)

	// SetVerificationCode は認証コードと有効期限を保存する。
	SetVerificationCode(ctx context.Context, userID, code string, expiry time.Time) error
}
