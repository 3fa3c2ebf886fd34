package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRouteFetchFailed means the routing-data provider could not be
	// queried. It is distinct from a route with no resolvable geometry.
	ErrRouteFetchFailed = errors.New("route fetch failed")
	// ErrThrottled means a client-side rate limit refused the request before
	// it reached the provider. The outcome is unknown and must not be cached.
	ErrThrottled = errors.New("throttled")
)
