// Package retrain は達成記録の追加をきっかけにしたモデル再学習を非同期に実行する。
//
// トグル処理からはユーザーIDだけを受け取り、バッファ付きキューを介してワーカーに渡す。
// キューが満杯の場合は要求を捨て、トグル処理を待たせない。
package retrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/predict"
)

// DefaultEvery は再学習を行う達成記録数の間隔。
const DefaultEvery = 20

// CompletionCounter はユーザーの達成記録数を返すインターフェース。
type CompletionCounter interface {
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// Trainer はユーザーのモデルを学習するインターフェース。
type Trainer interface {
	TrainForUser(ctx context.Context, userID string) (*predict.TrainResult, error)
}

// Options はDispatcherの設定。
type Options struct {
	Every     int // 再学習間隔（達成記録数）
	Workers   int // ワーカー数
	QueueSize int // キューの長さ
}

// ShouldRetrain は達成記録数が再学習の閾値に達したかを判定する。
// countが正かつeveryの倍数のときのみtrueを返す。
func ShouldRetrain(count, every int) bool {
	if every <= 0 {
		every = DefaultEvery
	}
	return count > 0 && count%every == 0
}

// Dispatcher は再学習要求を受け付け、ワーカープールで処理する。
type Dispatcher struct {
	counter CompletionCounter
	trainer Trainer
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	every   int
	workers int

	queue     chan string
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。
// 0以下の設定値には既定値（20件ごと、2ワーカー、キュー64）を使用する。
func NewDispatcher(
	counter CompletionCounter,
	trainer Trainer,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Dispatcher {
	if opts.Every <= 0 {
		opts.Every = DefaultEvery
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if mc == nil {
		mc = metrics.Noop{}
	}
	return &Dispatcher{
		counter: counter,
		trainer: trainer,
		metrics: mc,
		logger:  logger,
		every:   opts.Every,
		workers: opts.Workers,
		queue:   make(chan string, opts.QueueSize),
	}
}

// Notify はユーザーIDをキューに入れる。呼び出し元をブロックしない。
// キューが満杯または停止済みの場合は要求を破棄する。
func (d *Dispatcher) Notify(userID string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("retrain dispatcher stopped, request dropped",
			slog.String("user_id", userID),
		)
		d.metrics.RecordRetrainDropped()
		return
	}

	select {
	case d.queue <- userID:
	default:
		d.logger.Warn("再学習キューが満杯のため要求を破棄しました",
			slog.String("user_id", userID),
			slog.Int("queue_size", cap(d.queue)),
		)
		d.metrics.RecordRetrainDropped()
	}
}

// Start はワーカーを起動する。複数回呼んでも起動は1回だけ。
// 学習はctxのキャンセルから切り離して実行するため、開始済みの学習は中断されない。
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.logger.Info("再学習ワーカーを開始しました",
			slog.Int("workers", d.workers),
			slog.Int("every", d.every),
			slog.Int("queue_size", cap(d.queue)),
		)
		jobCtx := context.WithoutCancel(ctx)
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				for userID := range d.queue {
					d.Process(jobCtx, userID)
				}
			}()
		}
	})
}

// Stop は新しい要求の受け付けを止め、キューに残った要求と実行中の学習の完了を待つ。
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("再学習ワーカーを停止しました")
}

// Process は1件の再学習要求を処理する。
// 達成記録数が閾値に達していれば学習する。エラーとパニックはログに記録して握りつぶす。
func (d *Dispatcher) Process(ctx context.Context, userID string) {
	jobID := uuid.NewString()
	logger := d.logger.With(
		slog.String("job_id", jobID),
		slog.String("user_id", userID),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("再学習ジョブでpanicが発生しました",
				slog.String("panic", fmt.Sprint(r)),
			)
			d.metrics.RecordRetrain(metrics.RetrainOutcomeFailed, time.Since(start))
		}
	}()

	count, err := d.counter.CountByUserID(ctx, userID)
	if err != nil {
		logger.Error("達成記録数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		d.metrics.RecordRetrain(metrics.RetrainOutcomeFailed, time.Since(start))
		return
	}

	if !ShouldRetrain(count, d.every) {
		logger.Debug("retrain threshold not reached", slog.Int("count", count))
		d.metrics.RecordRetrain(metrics.RetrainOutcomeSkipped, 0)
		return
	}

	res, err := d.trainer.TrainForUser(ctx, userID)
	switch {
	case errors.Is(err, predict.ErrNotEnoughData):
		logger.Info("学習データが不足しているため再学習をスキップしました", slog.Int("count", count))
		d.metrics.RecordRetrain(metrics.RetrainOutcomeInsufficientData, time.Since(start))
	case err != nil:
		logger.Error("再学習に失敗しました",
			slog.Int("count", count),
			slog.String("error", err.Error()),
		)
		d.metrics.RecordRetrain(metrics.RetrainOutcomeFailed, time.Since(start))
	default:
		logger.Info("再学習が完了しました",
			slog.Int("count", count),
			slog.Int("samples", res.Samples),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		d.metrics.RecordRetrain(metrics.RetrainOutcomeTrained, time.Since(start))
	}
}
