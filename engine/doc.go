// Package engine provides a single node cache engine driven by a storeadapter.CacheStore.
//
// Preload fills the cache with the bulk load of the store. Get and GetAll read through to the
// store on a miss, sharing concurrent loads of the same key. Put, PutAll, Remove and RemoveAll
// write through to the store before updating the cache; the batch variants retry the remaining
// items with exponential backoff. Commit and Rollback end the session of the store; Rollback
// evicts the keys changed in the session.
//
// Calls to the store are made one at a time.
package engine
