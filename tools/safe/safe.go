package safe

import (
	"ChatWave/logger"
)

// Go starts a goroutine that recovers from panic, so a single handler's
// panic never takes down the process.
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
