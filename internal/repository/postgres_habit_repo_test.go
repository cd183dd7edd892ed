package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/habitly/internal/model"
)

// --- テストヘルパー ---

// newMockHabitRepo はsqlmockに接続したPostgresHabitRepoを生成する。
func newMockHabitRepo(t *testing.T) (*PostgresHabitRepo, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewPostgresHabitRepo(db), mock
}

// habitColumns はhabitsテーブルのSELECT/RETURNING列。
var habitColumns = []string{
	"id", "user_id", "name", "description", "frequency", "target_count", "created_at", "update_at",
}

// --- インターフェース・コンストラクタの検証 ---

// PostgresHabitRepoはHabitRepositoryインターフェースを満たすことを検証
func TestPostgresHabitRepo_ImplementsInterface(t *testing.T) {
	var _ HabitRepository = (*PostgresHabitRepo)(nil)
}

// NewPostgresHabitRepoが正しく初期化されることを検証
func TestNewPostgresHabitRepo_Initializes(t *testing.T) {
	repo := NewPostgresHabitRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// --- CreateWithTags のテスト ---

func TestPostgresHabitRepo_CreateWithTags_CommitsHabitAndTags(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO habits").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO habit_tags").
		WithArgs("habit-1", "tag-fitness").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO habit_tags").
		WithArgs("habit-1", "tag-health").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, name FROM tags").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("tag-fitness", "fitness").
			AddRow("tag-health", "health"))
	mock.ExpectCommit()

	now := time.Now()
	habit := &model.Habit{
		ID:        "habit-1",
		UserID:    "user-123",
		Name:      "Morning run",
		Frequency: "daily",
		CreatedAt: now,
		UpdateAt:  now,
	}

	err := repo.CreateWithTags(context.Background(), habit, []string{"tag-fitness", "tag-health"})
	if err != nil {
		t.Fatalf("CreateWithTags() error = %v", err)
	}

	if len(habit.Tags) != 2 {
		t.Errorf("len(Tags) = %d, want 2", len(habit.Tags))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_CreateWithTags_NoTags_SkipsTagStatements(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO habits").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	habit := &model.Habit{ID: "habit-1", UserID: "user-123", Name: "Read", Frequency: "weekly"}

	if err := repo.CreateWithTags(context.Background(), habit, nil); err != nil {
		t.Fatalf("CreateWithTags() error = %v", err)
	}

	// タグなしでもTagsはnullではなく空配列としてシリアライズできる状態にする
	if habit.Tags == nil {
		t.Error("Tags = nil, want empty slice")
	}
	if len(habit.Tags) != 0 {
		t.Errorf("len(Tags) = %d, want 0", len(habit.Tags))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_CreateWithTags_TagInsertFailure_RollsBack(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO habits").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO habit_tags").
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	habit := &model.Habit{ID: "habit-1", UserID: "user-123", Name: "Run", Frequency: "daily"}

	err := repo.CreateWithTags(context.Background(), habit, []string{"no-such-tag"})
	if err == nil {
		t.Fatal("CreateWithTags() expected error")
	}

	// タグ挿入が失敗した場合、習慣だけがコミットされる状態を作らない
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// --- ListByUserWithTags のテスト ---

func TestPostgresHabitRepo_ListByUserWithTags_DistributesTags(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	now := time.Now()
	mock.ExpectQuery("FROM habits").
		WithArgs("user-123").
		WillReturnRows(sqlmock.NewRows(habitColumns).
			AddRow("habit-2", "user-123", "newer", nil, "daily", nil, now, now).
			AddRow("habit-1", "user-123", "older", nil, "weekly", nil, now, now))
	mock.ExpectQuery("FROM habit_tags ht").
		WillReturnRows(sqlmock.NewRows([]string{"habit_id", "id", "name"}).
			AddRow("habit-2", "tag-health", "health"))

	habits, err := repo.ListByUserWithTags(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("ListByUserWithTags() error = %v", err)
	}

	if len(habits) != 2 {
		t.Fatalf("len(habits) = %d, want 2", len(habits))
	}
	if len(habits[0].Tags) != 1 || habits[0].Tags[0].Name != "health" {
		t.Errorf("habits[0].Tags = %v, want single health tag", habits[0].Tags)
	}
	// 紐付けのない習慣のTagsもnilにしない
	if habits[1].Tags == nil || len(habits[1].Tags) != 0 {
		t.Errorf("habits[1].Tags = %v, want empty slice", habits[1].Tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_ListByUserWithTags_NoHabits_ReturnsEmptyWithoutTagQuery(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectQuery("FROM habits").
		WithArgs("user-123").
		WillReturnRows(sqlmock.NewRows(habitColumns))

	habits, err := repo.ListByUserWithTags(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("ListByUserWithTags() error = %v", err)
	}
	if len(habits) != 0 {
		t.Errorf("len(habits) = %d, want 0", len(habits))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// --- UpdateWithTags のテスト ---

// updatedHabitRow はUPDATE ... RETURNINGが返す1行を構築する。
func updatedHabitRow(habitID, userID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(habitColumns).
		AddRow(habitID, userID, "Evening run", nil, "daily", nil, now, now)
}

func TestPostgresHabitRepo_UpdateWithTags_NoMatchingRow_ReturnsNotUpdated(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	// 不正なID、または他ユーザー所有の習慣：WHERE句が一致しない
	mock.ExpectQuery("UPDATE habits").
		WillReturnRows(sqlmock.NewRows(habitColumns))
	mock.ExpectRollback()

	habit, updated, err := repo.UpdateWithTags(context.Background(), "user-123", "habit-1", HabitChanges{})
	if err != nil {
		t.Fatalf("UpdateWithTags() error = %v, want nil", err)
	}
	if updated {
		t.Error("updated = true, want false")
	}
	if habit != nil {
		t.Error("habit should be nil when no row matches")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_UpdateWithTags_TagIDsNil_LeavesLinksUntouched(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE habits").
		WillReturnRows(updatedHabitRow("habit-1", "user-123"))
	// DELETE/INSERTは発行されず、現状の紐付けを読むだけ
	mock.ExpectQuery("FROM habit_tags ht").
		WithArgs("habit-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("tag-health", "health"))
	mock.ExpectCommit()

	habit, updated, err := repo.UpdateWithTags(context.Background(), "user-123", "habit-1", HabitChanges{})
	if err != nil {
		t.Fatalf("UpdateWithTags() error = %v", err)
	}
	if !updated {
		t.Fatal("updated = false, want true")
	}
	if len(habit.Tags) != 1 {
		t.Errorf("len(Tags) = %d, want 1", len(habit.Tags))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_UpdateWithTags_TagIDsEmpty_RemovesAllLinks(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE habits").
		WillReturnRows(updatedHabitRow("habit-1", "user-123"))
	mock.ExpectExec("DELETE FROM habit_tags").
		WithArgs("habit-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("FROM habit_tags ht").
		WithArgs("habit-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectCommit()

	empty := []string{}
	habit, updated, err := repo.UpdateWithTags(context.Background(), "user-123", "habit-1", HabitChanges{TagIDs: &empty})
	if err != nil {
		t.Fatalf("UpdateWithTags() error = %v", err)
	}
	if !updated {
		t.Fatal("updated = false, want true")
	}
	if habit.Tags == nil || len(habit.Tags) != 0 {
		t.Errorf("Tags = %v, want empty slice", habit.Tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_UpdateWithTags_TagIDsReplacement_DeletesThenReinserts(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE habits").
		WillReturnRows(updatedHabitRow("habit-1", "user-123"))
	mock.ExpectExec("DELETE FROM habit_tags").
		WithArgs("habit-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO habit_tags").
		WithArgs("habit-1", "tag-fitness").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO habit_tags").
		WithArgs("habit-1", "tag-health").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM habit_tags ht").
		WithArgs("habit-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("tag-fitness", "fitness").
			AddRow("tag-health", "health"))
	mock.ExpectCommit()

	tagIDs := []string{"tag-fitness", "tag-health"}
	habit, updated, err := repo.UpdateWithTags(context.Background(), "user-123", "habit-1", HabitChanges{TagIDs: &tagIDs})
	if err != nil {
		t.Fatalf("UpdateWithTags() error = %v", err)
	}
	if !updated {
		t.Fatal("updated = false, want true")
	}
	if len(habit.Tags) != 2 {
		t.Errorf("len(Tags) = %d, want 2", len(habit.Tags))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHabitRepo_UpdateWithTags_TagInsertFailure_RollsBack(t *testing.T) {
	repo, mock := newMockHabitRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE habits").
		WillReturnRows(updatedHabitRow("habit-1", "user-123"))
	mock.ExpectExec("DELETE FROM habit_tags").
		WithArgs("habit-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO habit_tags").
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	tagIDs := []string{"no-such-tag"}
	_, _, err := repo.UpdateWithTags(context.Background(), "user-123", "habit-1", HabitChanges{TagIDs: &tagIDs})
	if err == nil {
		t.Fatal("UpdateWithTags() expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
