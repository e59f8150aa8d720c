package usecase

import "fmt"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// 一覧のページ情報（pageは1始まり）
type Page[T any] struct {
	Content     []T   `json:"content"`
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Size        int   `json:"size"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func NewPage[T any](content []T, total int64, page int, size int) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:     content,
		Total:       total,
		Page:        page,
		Size:        size,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// 0は未指定としてデフォルトにする
func normalizePaging(page int, size int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = defaultPageSize
	}
	var details []string
	if page < 1 {
		details = append(details, "page: must be >= 1")
	}
	if size < 1 || size > maxPageSize {
		details = append(details, fmt.Sprintf("size: must be between 1 and %d", maxPageSize))
	}
	if len(details) > 0 {
		return 0, 0, Validation("Validation failed", details...)
	}
	return page, size, nil
}
