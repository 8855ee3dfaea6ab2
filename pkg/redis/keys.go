package redis

import "strings"

const keySeparator = ":"

// Keyspace prefixes every key the service writes, e.g. "expiry:prod".
type Keyspace struct {
	prefix string
}

// NewKeyspace joins the non-blank parts into a key prefix.
func NewKeyspace(parts ...string) Keyspace {
	return Keyspace{prefix: join(parts)}
}

func (k Keyspace) String() string { return k.prefix }

// Key builds a key under the namespace, skipping blank parts.
func (k Keyspace) Key(parts ...string) string {
	return join(append([]string{k.prefix}, parts...))
}

// JobLock guards one scheduled job across worker processes.
func (k Keyspace) JobLock(job string) string {
	return k.Key("scheduler", "lock", job)
}

// JobLastRun holds the last occurrence a job completed for.
func (k Keyspace) JobLastRun(job string) string {
	return k.Key("scheduler", "last_run", job)
}

func (k Keyspace) RateLimit(scope string) string {
	return k.Key("rate_limit", scope)
}

func join(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, keySeparator)
}
