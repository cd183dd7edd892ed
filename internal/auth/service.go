// Package auth はユーザー登録・ログインとトークン発行のビジネスロジックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/habitly/internal/model"
	"github.com/hitoshi/habitly/internal/repository"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PasswordHasher はパスワードのハッシュ化と検証のインターフェース。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer は認証成功時のトークン発行インターフェース。
type TokenIssuer interface {
	Issue(userID, email, username string) (string, error)
}

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
// nilの場合は記録しない。
type MetricsRecorder interface {
	RecordRegistration()
	RecordLogin()
	RecordAuthFailure(reason string)
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult は登録・ログイン成功時の結果。
// ユーザーの公開投影と発行済みトークンを持つ。
type AuthResult struct {
	User  model.PublicUser
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
// リクエスト間で状態を持たない。
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	issuer   TokenIssuer
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。
// metricsはnilを許容する。
func NewService(userRepo repository.UserRepository, hasher PasswordHasher, issuer TokenIssuer, metrics MetricsRecorder) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		issuer:   issuer,
		metrics:  metrics,
	}
}

// Register は新規ユーザーを登録し、トークンを発行する。
// パスワードはハッシュ化してから永続化し、結果には公開投影のみを含める。
// email/usernameの一意制約違反はUSER_ALREADY_EXISTSとして区別して返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		slog.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, model.NewUserCreateFailedError()
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			slog.Warn("duplicate registration attempt",
				slog.String("email", input.Email),
				slog.String("username", input.Username),
			)
			return nil, model.NewUserAlreadyExistsError()
		}
		slog.Error("failed to create user", slog.String("error", err.Error()))
		return nil, model.NewUserCreateFailedError()
	}

	tokenStr, err := s.issuer.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		slog.Error("failed to issue token", slog.String("error", err.Error()))
		return nil, model.NewUserCreateFailedError()
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{
		User:  user.Public(),
		Token: tokenStr,
	}, nil
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// メールアドレス不存在とパスワード不一致は同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		if s.metrics != nil {
			s.metrics.RecordAuthFailure("unknown_email")
		}
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		if s.metrics != nil {
			s.metrics.RecordAuthFailure("wrong_password")
		}
		return nil, model.NewInvalidCredentialsError()
	}

	tokenStr, err := s.issuer.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLogin()
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResult{
		User:  user.Public(),
		Token: tokenStr,
	}, nil
}

// isUniqueViolation はドライバのエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
