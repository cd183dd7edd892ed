package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/habitly/internal/model"
)

// PostgresHabitRepo はPostgreSQLを使用した習慣リポジトリ。
type PostgresHabitRepo struct {
	db *sql.DB
}

// NewPostgresHabitRepo はPostgresHabitRepoを生成する。
func NewPostgresHabitRepo(db *sql.DB) *PostgresHabitRepo {
	return &PostgresHabitRepo{db: db}
}

// CreateWithTags は習慣とタグ紐付けを同一トランザクションで作成する。
// いずれかの書き込みが失敗した場合は全体を巻き戻し、
// タグなしの習慣だけがコミットされる状態を作らない。
// コミット時点の紐付けタグをhabit.Tagsに設定する（紐付けなしの場合は空スライス）。
func (r *PostgresHabitRepo) CreateWithTags(ctx context.Context, habit *model.Habit, tagIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 習慣を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO habits (id, user_id, name, description, frequency, target_count, created_at, update_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		habit.ID, habit.UserID, habit.Name, habit.Description, habit.Frequency, habit.TargetCount,
		habit.CreatedAt, habit.UpdateAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}

	// タグ紐付けを作成
	for _, tagID := range tagIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO habit_tags (habit_id, tag_id) VALUES ($1, $2)`,
			habit.ID, tagID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert habit tag: %w", err)
		}
	}

	// レスポンスで返せるよう、紐付けたタグを同一トランザクション内で取得する
	habit.Tags = []model.Tag{}
	if len(tagIDs) > 0 {
		tags, err := queryTags(ctx, tx,
			`SELECT id, name FROM tags WHERE id = ANY($1) ORDER BY name ASC`,
			pq.Array(tagIDs),
		)
		if err != nil {
			return err
		}
		habit.Tags = tags
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByUserWithTags はユーザーの全習慣をタグ付きで取得する。
// created_at降順で返し、各習慣のTagsにJOINしたタグを設定する。
func (r *PostgresHabitRepo) ListByUserWithTags(ctx context.Context, userID string) ([]model.Habit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, description, frequency, target_count, created_at, update_at
		 FROM habits
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	var habitIDs []string
	for rows.Next() {
		var h model.Habit
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.Name, &h.Description, &h.Frequency, &h.TargetCount,
			&h.CreatedAt, &h.UpdateAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		h.Tags = []model.Tag{}
		habits = append(habits, h)
		habitIDs = append(habitIDs, h.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}

	if len(habits) == 0 {
		return habits, nil
	}

	// 全習慣のタグを1クエリでまとめて取得し、習慣ごとに振り分ける
	tagRows, err := r.db.QueryContext(ctx,
		`SELECT ht.habit_id, t.id, t.name
		 FROM habit_tags ht
		 JOIN tags t ON t.id = ht.tag_id
		 WHERE ht.habit_id = ANY($1)`,
		pq.Array(habitIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit tags: %w", err)
	}
	defer tagRows.Close()

	tagsByHabit := make(map[string][]model.Tag)
	for tagRows.Next() {
		var habitID string
		var tag model.Tag
		if err := tagRows.Scan(&habitID, &tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan habit tag: %w", err)
		}
		tagsByHabit[habitID] = append(tagsByHabit[habitID], tag)
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habit tags: %w", err)
	}

	for i := range habits {
		if tags, ok := tagsByHabit[habits[i].ID]; ok {
			habits[i].Tags = tags
		}
	}

	return habits, nil
}

// UpdateWithTags はidとuser_idの両方に一致する習慣を同一トランザクションで更新する。
// 所有権チェックはUPDATE文のWHERE句で書き込みのたびに行い、
// 一致行がない場合はロールバックしてupdated=falseを返す。
// changes.TagIDsが非nilの場合は既存の紐付けを全削除してから再挿入する（完全置換）。
// 返却するHabitのTagsにはコミット時点の紐付けを設定する。
func (r *PostgresHabitRepo) UpdateWithTags(ctx context.Context, userID, habitID string, changes HabitChanges) (*model.Habit, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	habit := &model.Habit{}
	err = tx.QueryRowContext(ctx,
		`UPDATE habits
		 SET name = COALESCE($1, name),
		     description = COALESCE($2, description),
		     frequency = COALESCE($3, frequency),
		     target_count = COALESCE($4, target_count),
		     update_at = $5
		 WHERE id = $6 AND user_id = $7
		 RETURNING id, user_id, name, description, frequency, target_count, created_at, update_at`,
		changes.Name, changes.Description, changes.Frequency, changes.TargetCount, time.Now(),
		habitID, userID,
	).Scan(
		&habit.ID, &habit.UserID, &habit.Name, &habit.Description, &habit.Frequency, &habit.TargetCount,
		&habit.CreatedAt, &habit.UpdateAt,
	)

	if err == sql.ErrNoRows {
		// 存在しないIDと他ユーザー所有のIDを区別しない
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to update habit: %w", err)
	}

	if changes.TagIDs != nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM habit_tags WHERE habit_id = $1`,
			habitID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to delete habit tags: %w", err)
		}

		for _, tagID := range *changes.TagIDs {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO habit_tags (habit_id, tag_id) VALUES ($1, $2)`,
				habitID, tagID,
			)
			if err != nil {
				return nil, false, fmt.Errorf("failed to insert habit tag: %w", err)
			}
		}
	}

	// 置換後（または現状維持）の紐付けタグを取得してレスポンスに含める
	tags, err := queryTags(ctx, tx,
		`SELECT t.id, t.name
		 FROM habit_tags ht
		 JOIN tags t ON t.id = ht.tag_id
		 WHERE ht.habit_id = $1
		 ORDER BY t.name ASC`,
		habitID,
	)
	if err != nil {
		return nil, false, err
	}
	habit.Tags = tags

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return habit, true, nil
}

// queryTags はトランザクション内でタグ行を取得する。結果が0件でも非nilのスライスを返す。
func queryTags(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]model.Tag, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

// compile-time interface check
var _ HabitRepository = (*PostgresHabitRepo)(nil)
