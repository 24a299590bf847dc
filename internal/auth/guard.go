package auth

import (
	"sync"
	"time"
)

// LoginGuardConfig はログイン試行制限の設定。
type LoginGuardConfig struct {
	MaxAttempts int           // ウィンドウ内で許容する失敗回数
	Lockout     time.Duration // ウィンドウ長（最初の失敗から計測）
	// Now はテスト用に差し替え可能な時刻関数。nilの場合はtime.Now。
	Now func() time.Time
}

type attemptWindow struct {
	failures    int
	windowStart time.Time
}

// LoginGuard は識別子（正規化済みメールアドレス）ごとのログイン失敗回数を数える。
// 固定ウィンドウ内でMaxAttempts回失敗した識別子はウィンドウ終了までロックされる。
// 状態はプロセス内のみで保持し、再起動で失われる。
type LoginGuard struct {
	mu      sync.Mutex
	windows map[string]*attemptWindow
	config  LoginGuardConfig
}

// NewLoginGuard はLoginGuardを生成する。
func NewLoginGuard(config LoginGuardConfig) *LoginGuard {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Lockout <= 0 {
		config.Lockout = 15 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &LoginGuard{
		windows: make(map[string]*attemptWindow),
		config:  config,
	}
}

// current は有効なウィンドウを返す。期限切れのウィンドウはその場で破棄する。
// 呼び出し側でmuを保持すること。
func (g *LoginGuard) current(key string, now time.Time) *attemptWindow {
	w, ok := g.windows[key]
	if !ok {
		return nil
	}
	if !now.Before(w.windowStart.Add(g.config.Lockout)) {
		delete(g.windows, key)
		return nil
	}
	return w
}

// Locked は識別子がロック中かどうかを返す。
func (g *LoginGuard) Locked(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.current(key, g.config.Now())
	return w != nil && w.failures >= g.config.MaxAttempts
}

// Fail は失敗を1回記録し、この失敗でロック状態になったかどうかを返す。
func (g *LoginGuard) Fail(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.config.Now()
	w := g.current(key, now)
	if w == nil {
		w = &attemptWindow{windowStart: now}
		g.windows[key] = w
	}
	w.failures++
	return w.failures >= g.config.MaxAttempts
}

// Reset は識別子の失敗記録を消去する。
func (g *LoginGuard) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.windows, key)
}

// Sweep は期限切れのウィンドウをすべて破棄し、破棄した件数を返す。
func (g *LoginGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.config.Now()
	removed := 0
	for key, w := range g.windows {
		if !now.Before(w.windowStart.Add(g.config.Lockout)) {
			delete(g.windows, key)
			removed++
		}
	}
	return removed
}

// Len は保持しているウィンドウ数を返す。
func (g *LoginGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}
