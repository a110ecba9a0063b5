// Package store implements ports.KVStore backends for the persistent buffer.
//
//   - [Memory]: process-local map with a byte quota, shareable by managers
//   - [File]: one JSON file per key with atomic writes, survives restarts
//   - [Redis]: shared across processes through go-redis
package store
