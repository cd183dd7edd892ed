// Package validation はリクエストのJSONスキーマ検証ミドルウェアを提供する。
//
// ルートごとにスキーマを指定し、ハンドラー実行前にボディ・URLパラメータを
// 検証する。検証に失敗した場合はフィールド単位の詳細を含む400レスポンスを
// 返し、ハンドラーには到達しない。検証済みボディはリクエストコンテキストに
// 格納され、ハンドラーは生のボディではなくそちらをデコードする。
package validation

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// 定義済みスキーマ名。Body/Paramsに渡す。
const (
	SchemaRegister    = "register"
	SchemaLogin       = "login"
	SchemaHabitCreate = "habit_create"
	SchemaHabitUpdate = "habit_update"
	SchemaHabitParams = "habit_params"
)

// maxBodySize はリクエストボディの最大サイズ（1MB）。
const maxBodySize = 1 << 20

// FieldError は1つの制約違反を表す。
// Fieldは違反箇所へのドット区切りパス、Messageは違反内容の説明。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse は検証失敗時のレスポンスボディ。
type errorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// bodyContextKey は検証済みリクエストボディを格納するためのキー。
var bodyContextKey = contextKey("validated_body")

// Validator は埋め込みスキーマをコンパイルして保持し、
// ルートごとの検証ミドルウェアを生成する。
type Validator struct {
	schemas map[string]*jsonschema.Schema
	printer *message.Printer
}

// New は埋め込まれた全スキーマをコンパイルしてValidatorを生成する。
// スキーマのコンパイル失敗は起動時の設定不備として扱う。
func New() (*Validator, error) {
	names := []string{
		SchemaRegister,
		SchemaLogin,
		SchemaHabitCreate,
		SchemaHabitUpdate,
		SchemaHabitParams,
	}

	compiler := jsonschema.NewCompiler()
	for _, name := range names {
		data, err := schemasFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name+".json", doc); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
		}
	}

	schemas := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		sch, err := compiler.Compile(name + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		schemas[name] = sch
	}

	return &Validator{
		schemas: schemas,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Body は指定スキーマでリクエストボディを検証するミドルウェアを返す。
// 検証成功時はボディをコンテキストに格納して次のハンドラーへ進む。
// 検証失敗時は400と{error, details}を返し、ハンドラーは実行されない。
func (v *Validator) Body(schemaName string) func(next http.Handler) http.Handler {
	sch := v.mustSchema(schemaName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
			if err != nil {
				writeValidationError(w, "Validation failed", []FieldError{
					{Field: "", Message: "failed to read request body"},
				})
				return
			}

			decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				writeValidationError(w, "Validation failed", []FieldError{
					{Field: "", Message: "request body is not valid JSON"},
				})
				return
			}

			if err := sch.Validate(decoded); err != nil {
				writeValidationError(w, "Validation failed", v.collectDetails(err))
				return
			}

			ctx := context.WithValue(r.Context(), bodyContextKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Params は指定スキーマでchiのURLパラメータを検証するミドルウェアを返す。
// paramNamesに列挙したパラメータをオブジェクトとして検証する。
func (v *Validator) Params(schemaName string, paramNames ...string) func(next http.Handler) http.Handler {
	sch := v.mustSchema(schemaName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := make(map[string]any, len(paramNames))
			for _, name := range paramNames {
				if val := chi.URLParam(r, name); val != "" {
					params[name] = val
				}
			}

			if err := sch.Validate(params); err != nil {
				writeValidationError(w, "Invalid params", v.collectDetails(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DecodeBody はコンテキストに格納された検証済みボディをdstへデコードする。
// Bodyミドルウェアを通過したリクエストでのみ有効。
func DecodeBody(r *http.Request, dst any) error {
	raw, ok := r.Context().Value(bodyContextKey).([]byte)
	if !ok {
		return fmt.Errorf("validated body not found in context")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode validated body: %w", err)
	}
	return nil
}

// ContextWithBody はコンテキストに検証済みボディを注入する。
// テストでハンドラーを直接呼び出す場合に使用する。
func ContextWithBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, bodyContextKey, body)
}

// mustSchema はコンパイル済みスキーマを取得する。
// 未定義のスキーマ名はプログラミングエラーとしてpanicする。
func (v *Validator) mustSchema(name string) *jsonschema.Schema {
	sch, ok := v.schemas[name]
	if !ok {
		panic(fmt.Sprintf("validation: unknown schema %q", name))
	}
	return sch
}

// collectDetails は検証エラーからフィールド単位の詳細を抽出する。
// ネストした原因を深さ優先でたどり、違反した制約ごとに1エントリを作る。
func (v *Validator) collectDetails(err error) []FieldError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	var details []FieldError
	v.appendCauses(ve, &details)
	if len(details) == 0 {
		details = append(details, FieldError{Field: "", Message: ve.Error()})
	}
	return details
}

// appendCauses は末端の違反のみを詳細として収集する。
func (v *Validator) appendCauses(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, FieldError{
			Field:   strings.Join(ve.InstanceLocation, "."),
			Message: ve.ErrorKind.LocalizedString(v.printer),
		})
		return
	}
	for _, cause := range ve.Causes {
		v.appendCauses(cause, out)
	}
}

// writeValidationError は400と統一フォーマットの検証エラーを書き込む。
func writeValidationError(w http.ResponseWriter, msg string, details []FieldError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(errorResponse{
		Error:   msg,
		Details: details,
	})
}
