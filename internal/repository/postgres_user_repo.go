package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/chatgate/internal/model"
)

// PostgreSQLの一意制約違反のエラーコード
const uniqueViolation = "23505"

// 一意制約名（migrations/000001_create_users.up.sql）
const (
	constraintUsersEmail = "users_email_key"
	constraintUsersPhone = "users_phone_number_key"
)

const selectUserColumns = `id, email, phone_number, password_hash, is_active, is_staff, is_superuser,
	is_verified, verification_code, code_expiry, date_joined`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// ExistsByEmail はメールアドレスが登録済みかを返す。
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// ExistsByPhoneNumber は電話番号が登録済みかを返す。
func (r *PostgresUserRepo) ExistsByPhoneNumber(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE phone_number = $1)`,
		phone,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check phone number: %w", err)
	}
	return exists, nil
}

// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, phone_number, password_hash, is_active, is_staff, is_superuser, is_verified, date_joined)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.PhoneNumber, user.PasswordHash,
		user.IsActive, user.IsStaff, user.IsSuperuser, user.IsVerified, user.DateJoined,
	)
	if err != nil {
		if apiErr := mapUniqueViolation(err); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if profile != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_profiles (user_id, first_name, last_name, address, date_of_birth, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			user.ID, profile.FirstName, profile.LastName, profile.Address,
			profile.DateOfBirth, profile.CreatedAt, profile.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindProfile は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, last_name, address, date_of_birth, created_at, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Address, &p.DateOfBirth, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return p, nil
}

// SetVerificationCode は認証コードと有効期限を保存する。
func (r *PostgresUserRepo) SetVerificationCode(ctx context.Context, userID, code string, expiry time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET verification_code = $1, code_expiry = $2 WHERE id = $3`,
		code, expiry, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set verification code: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// scanUser は1行をUserに変換する。行がない場合は(nil, nil)を返す。
func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	var code sql.NullString
	var expiry sql.NullTime

	err := row.Scan(
		&u.ID, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.IsVerified,
		&code, &expiry, &u.DateJoined,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if code.Valid {
		u.VerificationCode = &code.String
	}
	if expiry.Valid {
		u.CodeExpiry = &expiry.Time
	}

	return u, nil
}

// mapUniqueViolation は一意制約違反を制約名に応じたAPIErrorへ変換する。
// 一意制約違反でない場合はnilを返す。
func mapUniqueViolation(err error) *model.APIError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case constraintUsersEmail:
		return model.NewEmailTakenError()
	case constraintUsersPhone:
		return model.NewPhoneTakenError()
	default:
		return nil
	}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
