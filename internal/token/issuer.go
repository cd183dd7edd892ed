// Package token は署名付きベアラートークンの発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークン検証の失敗種別。
// 認証ミドルウェアはこれらを区別してログに記録するが、
// クライアントへのレスポンスはいずれも401で統一する。
var (
	// ErrTokenMissing はトークンが提示されていないことを表す。
	ErrTokenMissing = errors.New("token is missing")
	// ErrTokenMalformed はトークンの形式が不正であることを表す。
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrTokenExpired はトークンの有効期限が切れていることを表す。
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenInvalidSignature はトークンの署名が不正であることを表す。
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
)

// Claims はトークンに埋め込む最小限のユーザー識別情報。
type Claims struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer はHS256で署名されたJWTを発行・検証する。
// 署名シークレットはコンストラクタで受け取り、グローバル状態を持たない。
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer はIssuerを生成する。
// secretが空の場合はエラーを返す（起動時に検出すべき設定不備）。
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is not configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue は指定クレームと有効期限・発行時刻を含む署名付きトークンを発行する。
func (i *Issuer) Issue(userID, email, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークン文字列を検証し、有効な場合はクレームを返す。
// 失敗時はErrTokenMissing / ErrTokenMalformed / ErrTokenExpired /
// ErrTokenInvalidSignature のいずれかを返す。
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalidSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
