package services

import (
	"bobbin-backend/pkg/common"
)

// normalizePage fills defaults and caps the page size
func normalizePage(p common.PaginationParams) common.PaginationParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = common.DefaultPageSize
	}
	if p.PageSize > common.MaxPageSize {
		p.PageSize = common.MaxPageSize
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}
