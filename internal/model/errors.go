package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはそのままクライアントに返るため、内部情報を含めてはならない。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアントに返すエラーメッセージ
	Category string // カテゴリ: auth, validation, habit, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	ErrCodeUserCreateFailed   = "USER_CREATE_FAILED"
	ErrCodeHabitCreateFailed  = "HABIT_CREATE_FAILED"
	ErrCodeHabitFetchFailed   = "HABIT_FETCH_FAILED"
	ErrCodeHabitUpdateFailed  = "HABIT_UPDATE_FAILED"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス不存在とパスワード不一致の双方で同一のエラーを返し、
// どちらが誤っていたかを外部から区別できないようにする。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
	}
}

// NewUserAlreadyExistsError はメールアドレスまたはユーザー名の重複エラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  "Email or username already exists",
		Category: "auth",
	}
}

// NewUserCreateFailedError はユーザー作成失敗エラーを生成する。
func NewUserCreateFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUserCreateFailed,
		Message:  "Failed to create user",
		Category: "auth",
	}
}

// NewHabitCreateFailedError は習慣作成失敗エラーを生成する。
func NewHabitCreateFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeHabitCreateFailed,
		Message:  "Failed to create habit",
		Category: "habit",
	}
}

// NewHabitFetchFailedError は習慣一覧取得失敗エラーを生成する。
func NewHabitFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeHabitFetchFailed,
		Message:  "Failed to fetch habits",
		Category: "habit",
	}
}

// NewHabitUpdateFailedError は習慣更新失敗エラーを生成する。
func NewHabitUpdateFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeHabitUpdateFailed,
		Message:  "Failed to update habit",
		Category: "habit",
	}
}
