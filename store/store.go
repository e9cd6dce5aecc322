package store

import (
	"context"
	"time"
)

var (
	ContextTimeout = time.Duration(20) * time.Second
)

type Pagination struct {
	Offset int
	Limit  int
}

// DefaultPagination has no limit. It is used where a caregiver's cohort is read
// as a whole; request handlers set their own limit.
func DefaultPagination() Pagination {
	return Pagination{
		Offset: 0,
		Limit:  0,
	}
}

func NewDbContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ContextTimeout)
}
