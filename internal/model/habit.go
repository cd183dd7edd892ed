package model

import "time"

// Habit はユーザーが追跡する習慣を表す。
// 1つのHabitは必ず1人のUserに帰属し、所有者のみが読み書きできる。
type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Frequency   string    `json:"frequency"`
	TargetCount *int      `json:"targetCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdateAt    time.Time `json:"updateAt"`

	// Tags は習慣に紐付くタグの集合。habit_tagsをJOINして取得する。
	// リポジトリの取得・書き込み操作で常に非nilに設定される。
	Tags []Tag `json:"tags"`
}

// Tag は習慣を分類するラベルを表す。
// タグのライフサイクル管理は本サービスの範囲外で、参照専用データとして扱う。
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
