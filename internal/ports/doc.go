// Package ports defines the interfaces (ports) that connect the queue
// manager to infrastructure adapters.
//
// # Port Interfaces
//
//   - [KVStore]: quota-limited key-value store behind the persistent buffer
//   - [Transport]: sends one batch to the collector
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters (internal/adapters) implement them with memory, file, redis and
// HTTP backends.
package ports
