// Package cleanup は認証まわりの期限切れ状態を定期的に掃除するジョブを提供する。
// 期限切れのパスワードリセットコードを資格情報ストアから破棄し、
// ログイン試行ガードのウィンドウが終了したエントリを解放する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = time.Hour

// ResetCodePurger は期限切れのリセットコードを破棄する。
// repository.CredentialRepositoryが実装する。
type ResetCodePurger interface {
	PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper はプロセス内の期限切れエントリを解放する。
// auth.LoginGuardが実装する。
type Sweeper interface {
	Sweep() int
}

// CleanupJob は期限切れ状態の掃除ジョブ。
// 冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	purger  ResetCodePurger // nilの場合はリセットコードを扱わない
	sweeper Sweeper         // nilの場合はガードを扱わない
	logger  *slog.Logger
	now     func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger ResetCodePurger, sweeper Sweeper, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:  purger,
		sweeper: sweeper,
		logger:  logger,
		now:     time.Now,
	}
}

// Run はジョブを1回実行する。
// ガードの掃除はリセットコードの破棄に失敗しても行う。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	swept := 0
	if j.sweeper != nil {
		swept = j.sweeper.Sweep()
	}

	var purged int64
	if j.purger != nil {
		n, err := j.purger.PurgeExpiredResetCodes(ctx, start)
		if err != nil {
			j.logger.Error("リセットコードの破棄に失敗しました",
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("リセットコードの破棄に失敗: %w", err)
		}
		purged = n
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("purged_reset_codes", purged),
		slog.Int("swept_login_entries", swept),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、以降はinterval毎にジョブを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
