package domain

import "strings"

// Defaults for the persistence key.
const (
	DefaultKeyPrefix = "snowplowOutQueue"
	DefaultKeyMode   = "post2"
)

// QueueKey identifies a queue in the persistent buffer. Two managers with
// the same key read and write the same stored list.
type QueueKey struct {
	Prefix       string
	FunctionName string
	Namespace    string
	Mode         string
}

// NewQueueKey builds a key with the default prefix and mode.
func NewQueueKey(functionName, namespace string) QueueKey {
	return QueueKey{
		Prefix:       DefaultKeyPrefix,
		FunctionName: functionName,
		Namespace:    namespace,
		Mode:         DefaultKeyMode,
	}
}

// String renders "<prefix>_<functionName>_<namespace>_<mode>".
func (k QueueKey) String() string {
	prefix := k.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	mode := k.Mode
	if mode == "" {
		mode = DefaultKeyMode
	}
	return strings.Join([]string{prefix, k.FunctionName, k.Namespace, mode}, "_")
}

// CollectorPath is appended to the collector base URL for batched POSTs.
const CollectorPath = "/com.snowplowanalytics.snowplow/tp2"
