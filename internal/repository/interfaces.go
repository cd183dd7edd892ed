// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/habitly/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// email/usernameの一意制約違反はドライバのエラーをそのまま返す。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail はメールアドレス完全一致でユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// HabitChanges は習慣の部分更新内容を表す。
// nilのフィールドは変更しない。TagIDsがnilの場合はタグ紐付けに触れず、
// 空スライスの場合は全紐付けを削除する（完全置換セマンティクス）。
type HabitChanges struct {
	Name        *string
	Description *string
	Frequency   *string
	TargetCount *int
	TagIDs      *[]string
}

// HabitRepository は習慣データの永続化インターフェース。
// 複数ステートメントの書き込みは単一トランザクションで行い、
// 部分的なhabit+tag状態が外部から観測されないことを保証する。
type HabitRepository interface {
	// CreateWithTags は習慣とタグ紐付けを同一トランザクションで作成する。
	// tagIDsが空の場合は習慣のみを作成する。
	CreateWithTags(ctx context.Context, habit *model.Habit, tagIDs []string) error

	// ListByUserWithTags はユーザーの全習慣をタグ付きで取得する。
	// created_at降順（新しい順）で返す。
	ListByUserWithTags(ctx context.Context, userID string) ([]model.Habit, error)

	// UpdateWithTags はidとuser_idの両方に一致する習慣を同一トランザクションで更新する。
	// 一致する行が存在しない場合（不正なID、または他ユーザーの習慣）は
	// トランザクションを巻き戻し、updated=falseを返す。エラーは実際の失敗のみを表す。
	UpdateWithTags(ctx context.Context, userID, habitID string, changes HabitChanges) (habit *model.Habit, updated bool, err error)
}

// TagRepository はタグ参照データの読み取りインターフェース。
// タグのライフサイクル管理は本サービスの範囲外のため、書き込み操作は持たない。
type TagRepository interface {
	// ListAll は全タグをname昇順で返す。
	ListAll(ctx context.Context) ([]model.Tag, error)
}
