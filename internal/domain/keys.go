package domain

// Keys in the local KV store. Collection blobs share the prefix so logout
// and the schema gate can sweep them in one pass; the queue key is excluded
// from those sweeps because queued mutations are user data.
const (
	StorageKeyPrefix = "@hamu_"

	QueueKey         = StorageKeyPrefix + "offline_queue"
	LastSyncKey      = StorageKeyPrefix + "last_sync"
	SchemaVersionKey = StorageKeyPrefix + "schema_version"
)

// CollectionKey returns the blob key for a cached collection.
func CollectionKey(collection string) string {
	return StorageKeyPrefix + collection
}
