package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

const (
	// DefaultPageSize is used when the client omits pageSize or limit.
	DefaultPageSize = 50
	// MaxPageSize caps the number of items a single request may return.
	MaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidOffset    = errors.New("pagination: invalid skip/limit")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// ParsePage reads pageSize and pageToken for cursor paged listings.
func ParsePage(values url.Values) (domain.Pagination, error) {
	size, err := parseBounded(values.Get("pageSize"), DefaultPageSize)
	if err != nil {
		return domain.Pagination{}, fmt.Errorf("%w: %v", ErrInvalidPageSize, err)
	}
	token := strings.TrimSpace(values.Get("pageToken"))
	if token != "" {
		if _, err := DecodeToken(token); err != nil {
			return domain.Pagination{}, err
		}
	}
	return domain.Pagination{PageSize: size, PageToken: token}, nil
}

// ParseOffset reads skip and limit for offset paged listings. limit is clamped to MaxPageSize.
func ParseOffset(values url.Values) (domain.OffsetPagination, error) {
	skip := 0
	if raw := strings.TrimSpace(values.Get("skip")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.OffsetPagination{}, fmt.Errorf("%w: skip must be a non-negative integer", ErrInvalidOffset)
		}
		skip = n
	}
	limit, err := parseBounded(values.Get("limit"), DefaultPageSize)
	if err != nil {
		return domain.OffsetPagination{}, fmt.Errorf("%w: %v", ErrInvalidOffset, err)
	}
	return domain.OffsetPagination{Skip: skip, Limit: limit}, nil
}

func parseBounded(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	return n, nil
}
