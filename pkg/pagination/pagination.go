// Package pagination 按页码切分列表查询，每页大小由调用方传入，没有可修改的包级默认值
package pagination

import (
	"context"
	"math"

	"gorm.io/gorm"
)

// Params 规范化后的分页参数
type Params struct {
	Page    int
	PerPage int
}

// New perPage 至少为 1，page 限制在 [1, math.MaxInt/perPage]，offset 不会溢出
func New(page, perPage int) Params {
	if perPage < 1 {
		perPage = 1
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return Params{Page: page, PerPage: perPage}
}

func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

func (p Params) Limit() int { return p.PerPage }

// Page 分页列表的响应结构
type Page[T any] struct {
	Items       []T `json:"items"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

// LastPage 计算最后一页页码，最小为 1
func LastPage(total int64, perPage int) int {
	if perPage < 1 || total <= 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// Build 用已切好的数据组装分页
func Build[T any](items []T, total int64, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, PerPage: p.PerPage, CurrentPage: p.Page, LastPage: LastPage(total, p.PerPage)}
}

// Map 转换分页数据，保留分页信息
func Map[T, U any](src Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(src.Items))
	for i, it := range src.Items {
		out[i] = fn(it)
	}
	return Page[U]{Items: out, PerPage: src.PerPage, CurrentPage: src.CurrentPage, LastPage: src.LastPage}
}

// Query 统计 q 的总数并读取请求的分页；q 必须带 Model 或 Table，排序只用于取数据
func Query[T any](ctx context.Context, q *gorm.DB, p Params) ([]T, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).WithContext(ctx).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items := make([]T, 0, p.PerPage)
	if total == 0 || int64(p.Offset()) >= total {
		return items, total, nil
	}
	if err := q.Session(&gorm.Session{}).WithContext(ctx).Offset(p.Offset()).Limit(p.Limit()).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
