// Package credentials persists the two opaque session credentials (access
// and refresh tokens) used by the session manager.
//
// # Overview
//
// A Store is a dumb durable slot keyed by Kind. It performs no validation
// and keeps no expiry metadata; deciding what a credential means is left to
// the session package and, ultimately, to the server.
//
// Implementations:
//   - MemoryStore: process-lifetime storage, used by tests and -db=memory.
//   - SQLiteStore: durable storage in a local SQLite file; the schema is
//     applied by embedded goose migrations on Open.
//   - SealedStore: a decorator that encrypts values before they reach the
//     wrapped Store, keyed by a passphrase.
//
// All implementations are safe for concurrent use.
package credentials
