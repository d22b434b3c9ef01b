package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// The Date header is formatted once per second instead of per response;
// every in-flight response shares the cached string.

var (
	dateOnce  sync.Once
	dateValue atomic.Pointer[string]
)

func cachedDate() string {
	dateOnce.Do(startDateClock)
	return *dateValue.Load()
}

func startDateClock() {
	update := func() {
		s := time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
		dateValue.Store(&s)
	}
	update()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			update()
		}
	}()
}
