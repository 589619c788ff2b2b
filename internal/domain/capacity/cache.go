package capacity

import "time"

// CacheNamespace scopes cache keys; bumping Version invalidates a whole family.
type CacheNamespace struct {
	Name    string
	Version string
}

func (n CacheNamespace) Key(key string) string {
	return n.Name + ":" + n.Version + ":" + key
}

// CacheEnvelope is a value addressed to a tier store. TTL 0 means no expiry.
type CacheEnvelope struct {
	Namespace CacheNamespace
	Key       string
	Value     []byte
	TTL       time.Duration
}

func (e CacheEnvelope) StorageKey() string {
	return e.Namespace.Key(e.Key)
}
