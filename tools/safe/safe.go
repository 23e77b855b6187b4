package safe

import (
	"chatrelay/logger"
)

// Go starts a new goroutine that recovers from panic, so a panicking side
// effect cannot crash the whole relay.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
