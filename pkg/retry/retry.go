package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config はリトライの設定を保持する
type Config struct {
	Attempts     int
	BaseInterval time.Duration
	MaxBackoff   time.Duration
}

// DefaultConfig はデフォルトのリトライ設定を返す
func DefaultConfig() Config {
	return Config{
		Attempts:     6,
		BaseInterval: 50 * time.Millisecond,
		MaxBackoff:   2 * time.Second,
	}
}

// Backoff は指数バックオフ + ジッターを計算する
func Backoff(attempt int, baseInterval, maxBackoff time.Duration) time.Duration {
	d := baseInterval << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	// +/-10% jitter
	return time.Duration(int64(d) * int64(9+rand.Intn(3)) / 10)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent はリトライしても意味のないエラーを表す
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ShouldRetry はエラーに基づいてリトライすべきか判定する。
// 1回の試行のタイムアウトはリトライ対象で、中止の判断は Do が呼び出し元の ctx で行う。
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	return !errors.As(err, &p)
}

// Do は fn が成功するか、リトライ不可のエラーを返すか、試行回数を使い切るまで実行する。
// 実行した回数と最後のエラーを返す。Attempts が1未満でも fn は1回実行される。
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) (int, error) {
	attempts := max(cfg.Attempts, 1)
	var err error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(Backoff(i-1, cfg.BaseInterval, cfg.MaxBackoff))
			select {
			case <-ctx.Done():
				timer.Stop()
				return i, ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(i)
		if !ShouldRetry(err) {
			var p *permanentError
			if errors.As(err, &p) {
				return i + 1, p.err
			}
			return i + 1, err
		}
		if ctx.Err() != nil {
			return i + 1, ctx.Err()
		}
	}

	return attempts, err
}
