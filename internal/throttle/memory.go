package throttle

import (
	"context"
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryStore はプロセス内メモリで試行回数を管理します。
// 単一インスタンス構成向けの既定実装です。
type MemoryStore struct {
	policy   Policy
	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewMemoryStore はMemoryStoreを作成します。
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{
		policy:   policy,
		attempts: make(map[string]*attemptState),
	}
}

// Check はロック中であれば残り時間を返します。
func (s *MemoryStore) Check(_ context.Context, key string) (time.Duration, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	state, ok := s.attempts[key]
	if !ok {
		return 0, nil
	}
	now := time.Now()
	if now.After(state.lockedUntil) {
		return 0, nil
	}
	return time.Until(state.lockedUntil), nil
}

// RecordFailure は失敗を記録し、残り試行回数を返します。
func (s *MemoryStore) RecordFailure(_ context.Context, key string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := time.Now()
	state, ok := s.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > s.policy.Window {
		state = &attemptState{firstAttempt: now}
		s.attempts[key] = state
	}

	state.count++
	if state.count >= s.policy.MaxAttempts {
		state.lockedUntil = now.Add(s.policy.Lock)
		state.count = s.policy.MaxAttempts
	}

	remaining := s.policy.MaxAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset は失敗履歴を消去します。
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.attempts, key)
	return nil
}
