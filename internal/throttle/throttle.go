// Package throttle はログイン試行回数の制限を提供します。
package throttle

import (
	"context"
	"time"
)

// Policy は試行制限のパラメーターです。
type Policy struct {
	Window      time.Duration // 失敗回数をカウントする時間枠
	Lock        time.Duration // 上限到達後のロック時間
	MaxAttempts int           // 時間枠内に許容する失敗回数
}

// DefaultPolicy は5回/15分、ロック10分の既定値を返します。
func DefaultPolicy() Policy {
	return Policy{
		Window:      15 * time.Minute,
		Lock:        10 * time.Minute,
		MaxAttempts: 5,
	}
}

// Store はキー（クライアントIP等）ごとの失敗回数を追跡します。
type Store interface {
	// Check はロック中であれば残り時間を返します。ロックされていなければ0。
	Check(ctx context.Context, key string) (time.Duration, error)

	// RecordFailure は失敗を1回記録し、残り試行回数を返します。
	RecordFailure(ctx context.Context, key string) (int, error)

	// Reset は成功時に失敗履歴を消去します。
	Reset(ctx context.Context, key string) error
}
