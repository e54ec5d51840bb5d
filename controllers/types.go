package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type StandardResponse struct {
	Success    bool            `json:"success"`
	Data       interface{}     `json:"data,omitempty"`
	Meta       interface{}     `json:"meta,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
	Message    string          `json:"message,omitempty"`
}

type PaginationMeta struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
}

const maxPageSize = 100

// paginate slices items by the page and pageSize query parameters. Without
// a page parameter everything is returned and the meta is nil.
func paginate[T any](c *gin.Context, items []T) ([]T, *PaginationMeta) {
	if c.Query("page") == "" {
		return items, nil
	}
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(items)
	meta := &PaginationMeta{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  int64(total),
		TotalPages:  (total + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []T{}, meta
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], meta
}
