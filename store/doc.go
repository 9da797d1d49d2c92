// Package store provides backing store decorators and utilities for the store-adapter library.
//
// This package contains ErrorHookStore, which wraps any storeadapter.CacheStore to observe
// the errors of its operations without changing them.
//
// This package also defines common error types for backing store operations:
// ErrLoad, ErrWrite, ErrDelete, ErrSessionEnd and ErrScan. The stores under this
// directory wrap their I/O errors with them.
package store
