package repository

import "errors"

var (
	// 対象が無い
	ErrNotFound = errors.New("not found")
	// unique制約違反
	ErrDuplicate = errors.New("duplicate")
	// 条件付き更新で0件（状態がもう変わっている）
	ErrStateConflict = errors.New("state conflict")
)
