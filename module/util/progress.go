package util

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogProgressFunc adds to the progress of a long running task. It can be called concurrently.
type LogProgressFunc func(add int)

// LogProgress returns a function that logs progress of a task with the given total every time
// another tenth of it completes, and once at 0%.
func LogProgress(log zerolog.Logger, msg string, total int) LogProgressFunc {
	start := time.Now()
	step := total / 10
	if step == 0 {
		step = 1
	}

	var mu sync.Mutex
	current := 0

	logAt := func(value int) {
		percentage := float64(100)
		if total > 0 {
			percentage = float64(value) / float64(total) * 100
		}
		log.Info().
			Int("done", value).
			Int("total", total).
			Dur("elapsed", time.Since(start).Round(time.Millisecond)).
			Msgf("%s progress %.1f%%", msg, percentage)
	}

	logAt(0)

	return func(add int) {
		if add <= 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()

		before := current
		current += add
		if current/step != before/step || (current >= total && before < total) {
			logAt(current)
		}
	}
}
