// Package account はユーザーアカウント管理のドメインロジックを提供する。
// 登録・管理者作成・認証コードの発行を扱う。
package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	netmail "net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/chatgate/internal/mail"
	"github.com/hitoshi/chatgate/internal/metrics"
	"github.com/hitoshi/chatgate/internal/model"
	"github.com/hitoshi/chatgate/internal/repository"
	"github.com/hitoshi/chatgate/internal/security"
)

const (
	// verificationCodeDigits は発行する認証コードの桁数。
	verificationCodeDigits = 6
	// dateLayout は生年月日の入力形式。
	dateLayout = "2006-01-02"
)

// RegisterInput はアカウント登録の入力値。
// プロフィール項目がすべて空の場合、プロフィールは作成しない。
type RegisterInput struct {
	Email       string
	PhoneNumber string
	Password    string
	FirstName   string
	LastName    string
	Address     string
	DateOfBirth string // YYYY-MM-DD
}

// SuperuserInput は管理者アカウント作成の入力値。
type SuperuserInput struct {
	Email       string
	PhoneNumber string
	Password    string
}

// Account はユーザーとプロフィールの組。プロフィールは存在しない場合nil。
type Account struct {
	User    *model.User
	Profile *model.Profile
}

// Options はServiceの設定値。
type Options struct {
	// CodeTTL は認証コードの有効期間。有効期限は保存のみ行う。
	CodeTTL time.Duration
	// HashCost はbcryptのコスト。0の場合はbcrypt.DefaultCost。
	HashCost int
}

// Service はアカウント管理のサービス層。
type Service struct {
	repo      repository.UserRepository
	sender    mail.Sender
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	codeTTL   time.Duration
	hashCost  int

	now     func() time.Time
	newCode func() (string, error)
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.UserRepository,
	sender mail.Sender,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	opts Options,
) *Service {
	cost := opts.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sender:    sender,
		sanitizer: sanitizer,
		metrics:   collector,
		codeTTL:   opts.CodeTTL,
		hashCost:  cost,
		now:       time.Now,
		newCode:   GenerateVerificationCode,
	}
}

// Register は一般ユーザーを登録し、認証コードをメールで送信する。
// メール送信に失敗しても登録は成功として扱い、失敗はログに残す。
// 再送は IssueVerificationCode で行う。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	email, err := s.validateCredentials(in.Email, in.PhoneNumber, in.Password)
	if err != nil {
		return nil, err
	}

	profile, err := s.buildProfile(in)
	if err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, email, strings.TrimSpace(in.PhoneNumber), in.Password, false, profile)
	if err != nil {
		return nil, err
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)

	if err := s.issueCode(ctx, user); err != nil {
		slog.Warn("登録時の認証コード送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return &Account{User: user, Profile: profile}, nil
}

// CreateSuperuser はスタッフ権限と管理者権限を持つユーザーを作成する。
// プロフィールは作成せず、認証コードも送信しない。
func (s *Service) CreateSuperuser(ctx context.Context, in SuperuserInput) (*model.User, error) {
	email, err := s.validateCredentials(in.Email, in.PhoneNumber, in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, email, strings.TrimSpace(in.PhoneNumber), in.Password, true, nil)
	if err != nil {
		return nil, err
	}

	slog.Info("管理者ユーザーを作成しました",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// IssueVerificationCode は登録済みメールアドレスに新しい認証コードを発行して送信する。
func (s *Service) IssueVerificationCode(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return model.NewEmailRequiredError()
	}
	normalized := NormalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	return s.issueCode(ctx, user)
}

// GetUser は指定IDのユーザーとプロフィールを取得する。
func (s *Service) GetUser(ctx context.Context, id string) (*Account, error) {
	// UUID形式でないIDは存在しないものとして扱う
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewUserNotFoundError()
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	profile, err := s.repo.FindProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return &Account{User: user, Profile: profile}, nil
}

// validateCredentials は必須項目を検証し、正規化済みのメールアドレスを返す。
func (s *Service) validateCredentials(email, phone, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", model.NewEmailRequiredError()
	}
	if utf8.RuneCountInString(email) > model.MaxEmailLength {
		return "", model.NewInvalidEmailError(email)
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewInvalidEmailError(email)
	}

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", model.NewPhoneRequiredError()
	}
	if len(phone) > model.MaxPhoneNumberLength {
		return "", model.NewInvalidPhoneError()
	}

	if password == "" {
		return "", model.NewPasswordRequiredError()
	}

	return NormalizeEmail(email), nil
}

// buildProfile は入力からプロフィールを組み立てる。プロフィール項目が空ならnilを返す。
func (s *Service) buildProfile(in RegisterInput) (*model.Profile, error) {
	first := s.sanitizer.Sanitize(in.FirstName)
	last := s.sanitizer.Sanitize(in.LastName)
	address := s.sanitizer.Sanitize(in.Address)
	dob := strings.TrimSpace(in.DateOfBirth)

	if first == "" && last == "" && address == "" && dob == "" {
		return nil, nil
	}

	if utf8.RuneCountInString(first) > model.MaxNameLength {
		return nil, model.NewNameTooLongError("first_name")
	}
	if utf8.RuneCountInString(last) > model.MaxNameLength {
		return nil, model.NewNameTooLongError("last_name")
	}

	date, err := time.Parse(dateLayout, dob)
	if err != nil {
		return nil, model.NewInvalidDateError("date_of_birth")
	}

	now := s.now()
	return &model.Profile{
		FirstName:   first,
		LastName:    last,
		Address:     address,
		DateOfBirth: date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// createUser は重複を事前確認したうえでユーザーを保存する。
// 事前確認と保存の間に重複が発生した場合もリポジトリが一意制約違反をAPIErrorに変換する。
func (s *Service) createUser(ctx context.Context, email, phone, password string, admin bool, profile *model.Profile) (*model.User, error) {
	taken, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	if taken {
		return nil, model.NewEmailTakenError()
	}

	taken, err = s.repo.ExistsByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("電話番号の確認に失敗しました: %w", err)
	}
	if taken {
		return nil, model.NewPhoneTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: string(hash),
		IsActive:     true,
		IsStaff:      admin,
		IsSuperuser:  admin,
		DateJoined:   s.now(),
	}
	if profile != nil {
		profile.UserID = user.ID
	}

	if err := s.repo.CreateWithProfile(ctx, user, profile); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	return user, nil
}

// issueCode は認証コードを生成・保存し、メールで送信する。
func (s *Service) issueCode(ctx context.Context, user *model.User) error {
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("認証コードの生成に失敗しました: %w", err)
	}
	expiry := s.now().Add(s.codeTTL)

	if err := s.repo.SetVerificationCode(ctx, user.ID, code, expiry); err != nil {
		return fmt.Errorf("認証コードの保存に失敗しました: %w", err)
	}
	user.VerificationCode = &code
	user.CodeExpiry = &expiry

	if err := s.sender.SendVerificationCode(ctx, user.Email, code); err != nil {
		s.metrics.RecordVerificationEmail(false)
		slog.Error("認証コードメールの送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return model.NewMailFailedError()
	}
	s.metrics.RecordVerificationEmail(true)

	return nil
}

// NormalizeEmail はメールアドレスのドメイン部を小文字化する。ローカル部は変更しない。
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// GenerateVerificationCode は暗号論的乱数で6桁の数字コードを生成する。
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64()), nil
}
