// Package source provides record sources and store adapters built from functions.
//
// The record sources acquire their resources when the iteration starts and release them
// exactly once when the iteration ends, whether it completes, is stopped early, or panics.
package source
