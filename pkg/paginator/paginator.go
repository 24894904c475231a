package paginator

import "github.com/samber/lo"

const DefaultPageSize = 100

// TotalPages never returns less than 1, so an empty room still has one
// (empty) page.
func TotalPages(totalCount, pageSize int) int {
	if pageSize <= 0 || totalCount <= 0 {
		return 1
	}
	return (totalCount + pageSize - 1) / pageSize
}

// ClampPage pins requested into [1, totalPages].
func ClampPage(requested, totalPages int) int {
	return lo.Clamp(requested, 1, max(1, totalPages))
}

// Offset is the number of newest-first entries preceding page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// Window is the resolved page position for a room of totalCount entries.
type Window struct {
	Page       int
	TotalPages int
	Offset     int
	Limit      int
}

func Resolve(totalCount, requested, pageSize int) Window {
	totalPages := TotalPages(totalCount, pageSize)
	page := ClampPage(requested, totalPages)
	return Window{
		Page:       page,
		TotalPages: totalPages,
		Offset:     Offset(page, pageSize),
		Limit:      pageSize,
	}
}
