package panicutil

import (
	"github.com/sourcegraph/conc/panics"
)

// Guard runs functions and turns their panics into errors.
// The zero value is ready to use.
type Guard struct {
	// OnGoexit is called when the guarded function calls runtime.Goexit.
	// The goroutine keeps exiting after OnGoexit returns.
	OnGoexit func()
}

// Call runs f. It returns the error returned by f, or a *panics.ErrRecovered if f panics.
// If f calls runtime.Goexit, Call never returns and OnGoexit is called on the way out.
func (g Guard) Call(f func() error) (err error) {
	var (
		finished  bool
		panicked  bool
		recovered panics.Recovered
	)
	defer func() {
		if !finished && g.OnGoexit != nil {
			g.OnGoexit()
		}
	}()
	func() {
		normalReturn := false
		defer func() {
			if normalReturn {
				return
			}
			if r := recover(); r != nil {
				recovered = panics.NewRecovered(2, r)
				panicked = true
			}
		}()
		err = f()
		normalReturn = true
	}()
	finished = true
	if panicked {
		return recovered.AsError()
	}
	return err
}

// Call runs f with a zero Guard.
func Call(f func() error) error {
	return Guard{}.Call(f)
}
