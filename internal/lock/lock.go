package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotAcquired is returned when a lock could not be acquired in time.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases the locks acquired by a call to Lock. It is safe to call it more than once.
type Unlock func()

// Locker serializes work on the same keys. Lock acquires all given keys or none of them and blocks
// until that is possible, the context is done or the locker gives up.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}

// Keys returns the lock keys for an observation. Requests that share an email address or a phone
// number share a key.
func Keys(email *string, phoneNumber *string) []string {
	var keys []string
	if email != nil {
		keys = append(keys, "identity:email:"+*email)
	}
	if phoneNumber != nil {
		keys = append(keys, "identity:phone:"+*phoneNumber)
	}
	return keys
}

// normalize sorts and deduplicates keys. Acquiring keys in a global order prevents deadlocks
// between requests locking overlapping key sets.
func normalize(keys []string) []string {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	return sorted
}
