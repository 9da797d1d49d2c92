package store

import "errors"

var (
	ErrLoad       = errors.New("unable to load data from backing store")
	ErrWrite      = errors.New("unable to write data to backing store")
	ErrDelete     = errors.New("unable to delete data from backing store")
	ErrSessionEnd = errors.New("unable to end the session of backing store")
	ErrScan       = errors.New("unable to scan backing store")
)
