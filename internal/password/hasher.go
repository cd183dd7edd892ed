// Package password はパスワードの一方向ハッシュ化と検証を提供する。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher はbcryptによるパスワードハッシュ化を行う。
// bcryptはハッシュごとにランダムなソルトを生成するため、
// 同じ入力でも呼び出しごとに異なるハッシュが得られる。
type Hasher struct {
	cost int
}

// NewHasher は指定コストのHasherを生成する。
// costがbcryptの有効範囲外の場合はデフォルトコストを使用する。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash は平文パスワードをbcryptハッシュに変換する。
func (h *Hasher) Hash(plaintext string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify は平文パスワードをハッシュと照合する。
// bcryptの比較は一定時間で行われ、不一致の場合はfalseを返す。
func (h *Hasher) Verify(plaintext, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	return err == nil
}
