// Package habit は習慣管理のドメインロジックを提供する。
package habit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/habitly/internal/model"
	"github.com/hitoshi/habitly/internal/repository"
)

// MetricsRecorder は習慣操作のメトリクス記録インターフェース。
// nilの場合は記録しない。
type MetricsRecorder interface {
	RecordHabitCreated()
	RecordHabitUpdated()
}

// CreateInput は習慣作成の入力。
type CreateInput struct {
	Name        string
	Description *string
	Frequency   string
	TargetCount *int
	TagIDs      []string
}

// UpdateInput は習慣の部分更新の入力。
// nilのフィールドは変更しない。TagIDsがnilの場合はタグ紐付けに触れず、
// 空スライスの場合は全紐付けを削除する。
type UpdateInput struct {
	Name        *string
	Description *string
	Frequency   *string
	TargetCount *int
	TagIDs      *[]string
}

// UpdateResult は更新操作の結果。
// Authorized=falseは対象の習慣が存在しないか呼び出し元の所有物でないことを表し、
// 両者は外部から区別できない。エラーによる制御フローを避け、
// 呼び出し側はこのフィールドを検査してレスポンスを決定する。
type UpdateResult struct {
	Authorized bool
	Habit      *model.Habit
}

// Service は習慣管理のサービス層。
// 複数ステートメントの書き込みはリポジトリの単一トランザクションに委譲する。
type Service struct {
	habitRepo repository.HabitRepository
	sanitizer TextSanitizer
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。
// metricsはnilを許容する。
func NewService(habitRepo repository.HabitRepository, sanitizer TextSanitizer, metrics MetricsRecorder) *Service {
	return &Service{
		habitRepo: habitRepo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// Create は習慣とタグ紐付けを単一トランザクションで作成する。
// descriptionが省略された場合はNULLとして保存する。
// tagIDsに1件以上のIDがある場合のみ紐付けを作成し、
// いずれかの書き込みが失敗した場合は全体が巻き戻る。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*model.Habit, error) {
	now := time.Now()
	h := &model.Habit{
		ID:          uuid.New().String(),
		UserID:      ownerID,
		Name:        s.sanitize(input.Name),
		Description: s.sanitizePtr(input.Description),
		Frequency:   input.Frequency,
		TargetCount: input.TargetCount,
		CreatedAt:   now,
		UpdateAt:    now,
	}

	if err := s.habitRepo.CreateWithTags(ctx, h, input.TagIDs); err != nil {
		slog.Error("failed to create habit",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewHabitCreateFailedError()
	}

	if s.metrics != nil {
		s.metrics.RecordHabitCreated()
	}

	slog.Info("habit created",
		slog.String("habit_id", h.ID),
		slog.String("user_id", ownerID),
		slog.Int("tag_count", len(input.TagIDs)),
	)

	return h, nil
}

// List は呼び出し元が所有する全習慣をタグ付きで返す。
// created_at降順（新しい順）で返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]model.Habit, error) {
	habits, err := s.habitRepo.ListByUserWithTags(ctx, ownerID)
	if err != nil {
		slog.Error("failed to list habits",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewHabitFetchFailedError()
	}
	return habits, nil
}

// Update はidとownerの両方に一致する習慣を単一トランザクションで更新する。
// 所有権は書き込みのたびに再確認され、一致しない場合は
// Authorized=falseの結果を返す（エラーではない）。
// TagIDsが指定された場合は既存の紐付けを完全置換する。
func (s *Service) Update(ctx context.Context, ownerID, habitID string, input UpdateInput) (*UpdateResult, error) {
	changes := repository.HabitChanges{
		Name:        s.sanitizePtr(input.Name),
		Description: s.sanitizePtr(input.Description),
		Frequency:   input.Frequency,
		TargetCount: input.TargetCount,
		TagIDs:      input.TagIDs,
	}

	updated, ok, err := s.habitRepo.UpdateWithTags(ctx, ownerID, habitID, changes)
	if err != nil {
		slog.Error("failed to update habit",
			slog.String("habit_id", habitID),
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewHabitUpdateFailedError()
	}
	if !ok {
		slog.Warn("habit update rejected",
			slog.String("habit_id", habitID),
			slog.String("user_id", ownerID),
		)
		return &UpdateResult{Authorized: false}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordHabitUpdated()
	}

	slog.Info("habit updated",
		slog.String("habit_id", habitID),
		slog.String("user_id", ownerID),
	)

	return &UpdateResult{Authorized: true, Habit: updated}, nil
}

// sanitize はテキストをサニタイズする。sanitizerがnilの場合はそのまま返す。
func (s *Service) sanitize(v string) string {
	if s.sanitizer == nil {
		return v
	}
	return s.sanitizer.Sanitize(v)
}

// sanitizePtr はnil許容テキストをサニタイズする。
func (s *Service) sanitizePtr(v *string) *string {
	if v == nil {
		return nil
	}
	sanitized := s.sanitize(*v)
	return &sanitized
}
