package store

import "fmt"

// Resource namespaces a Redis key by the kind of thing it tracks. There is
// no tenant scoping: one controller instance serves one population of
// users.
type Resource string

const (
	ResourceLock       Resource = "lock"
	ResourceIdempotent Resource = "idempotency"
)

// Key builds a namespaced Redis key: intervention:{resource}:{id}.
func Key(resource Resource, id string) string {
	return fmt.Sprintf("intervention:%s:%s", resource, id)
}
