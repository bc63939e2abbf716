package refresh

import (
	"errors"
	"fmt"
)

// ErrUpstreamFetch matches any *UpstreamFetchError via errors.Is.
var ErrUpstreamFetch = errors.New("upstream fetch failed")

// UpstreamFetchError reports that the sales-data source was unreachable or
// returned malformed data. The cache is left untouched when it occurs.
type UpstreamFetchError struct {
	Op  string // "orders" or "inventory"
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstreamFetch) match.
func (e *UpstreamFetchError) Is(target error) bool { return target == ErrUpstreamFetch }
