// Package remotestore exposes a backing store over Connect RPC and provides a client for it.
//
// NewHandler serves a storeadapter.CacheStore[string, string]. Client talks to such a server and
// implements every capability of storeadapter, so it is used through storeadapter.NewAdapter:
//
//	path, handler := remotestore.NewHandler(store)
//	mux.Handle(path, handler)
//
//	client := remotestore.NewClient(http.DefaultClient, "https://example.com")
//	adapter := storeadapter.NewAdapter(client)
//
// The messages are protobuf well-known types, so no generated code is required.
// The bulk load of a client streams the entries produced by the LoadCache of the served store.
package remotestore
