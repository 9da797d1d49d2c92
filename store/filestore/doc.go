// Package filestore provides a file system backing store for storeadapter.
//
// Keys are slash separated paths relative to the root directory and values are the file
// contents. Writes are atomic: the value is written to a temporary file which is then
// renamed over the target. Files and directories whose name starts with a dot are ignored.
//
// The bulk load records are the keys found by walking the root directory. Parsing a record
// reads its file, so the files are read in parallel by storeadapter.Adapter.
package filestore
