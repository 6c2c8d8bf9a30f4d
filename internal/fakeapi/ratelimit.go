package fakeapi

import (
	"sync"
	"time"
)

// rateLimiter ограничивает число запросов по ключу в пределах окна
type rateLimiter struct {
	buckets  map[string]*bucket
	now      func() time.Time
	cleanupC chan struct{}
	rate     int
	window   time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

type bucket struct {
	lastRefill time.Time
	tokens     int
}

// newRateLimiter создает limiter, rate запросов на window
func newRateLimiter(rate int, window time.Duration, now func() time.Time) *rateLimiter {
	rl := &rateLimiter{
		buckets:  make(map[string]*bucket),
		now:      now,
		rate:     rate,
		window:   window,
		cleanupC: make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup периодически удаляет неактивные buckets
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.cleanupC:
			return
		}
	}
}

func (rl *rateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.window*2 {
			delete(rl.buckets, key)
		}
	}
}

// Stop останавливает cleanup goroutine
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.rate, lastRefill: now}
		rl.buckets[key] = b
	}

	// Пополняем токены когда окно прошло
	if now.Sub(b.lastRefill) >= rl.window {
		b.tokens = rl.rate
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}
