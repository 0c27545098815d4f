package router

import (
	"sync"
	"time"
)

// messagesPerMinute is sized for classroom traffic: a full class clicking
// through a live simulation stays well under it, a runaway client does not.
const messagesPerMinute = 240

// RateLimiter tracks per-user message counts over a sliding minute window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{clients: make(map[string]*clientWindow)}
}

// Allow reports whether the user may send another message this minute.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.clients[userID]
	if !ok || now.Sub(w.windowStart) >= time.Minute {
		rl.clients[userID] = &clientWindow{count: 1, windowStart: now}
		return true
	}
	if w.count >= messagesPerMinute {
		return false
	}
	w.count++
	return true
}

// Cleanup drops windows idle for several minutes. Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for userID, w := range rl.clients {
		if now.Sub(w.windowStart) > 5*time.Minute {
			delete(rl.clients, userID)
		}
	}
}
