// Package memstore provides an in-memory backing store for storeadapter.
//
// The store is distributed across multiple buckets by key hash. Writes and deletes are
// buffered in a session until SessionEnd commits or discards them, unless the store is
// created with WithAutocommit. Reads see the buffered changes of the current session.
//
// The store implements the bulk load capabilities with its committed entries as records,
// so it is used through storeadapter.NewAdapter.
package memstore
