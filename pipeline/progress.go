package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// startProgress logs the generated count every interval until the returned
// stop func is called.
func startProgress(interval time.Duration, generated *atomic.Int64, total int, log *logrus.Entry) (stop func()) {
	if interval <= 0 {
		return func() {}
	}

	t := time.NewTicker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-t.C:
				log.WithFields(logrus.Fields{
					"generated": generated.Load(),
					"total":     total,
				}).Info("progress")
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
			wg.Wait()
		})
	}
}
