package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/metrics"
)

// Broadcaster 从 notification_outbox 拉取管理员广播，按批次为所有用户挂接接收者并推送
type Broadcaster struct {
	db           *gorm.DB
	publisher    relay.Publisher
	workers      int
	batchSize    int
	claimLimit   int
	pollInterval time.Duration
}

func NewBroadcaster(db *gorm.DB, publisher relay.Publisher, workers, batchSize int, pollInterval time.Duration) *Broadcaster {
	if workers <= 0 {
		workers = 2
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if publisher == nil {
		publisher = relay.Nop{}
	}
	return &Broadcaster{db: db, publisher: publisher, workers: workers, batchSize: batchSize, claimLimit: 16, pollInterval: pollInterval}
}

// Start 启动轮询 worker，返回停止函数
func (b *Broadcaster) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{}, b.workers)
	for i := 0; i < b.workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			b.loop(stop)
		}()
	}
	return func(ctx context.Context) error {
		close(stop)
		for i := 0; i < b.workers; i++ {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

func (b *Broadcaster) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := b.ProcessOnce(context.Background()); err != nil {
				logger.Warn("broadcast poll failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 认领 pending 任务并逐个扇出，返回成功送达全部用户的任务数。
// 失败的任务回到 pending，由后续轮询重试
func (b *Broadcaster) ProcessOnce(ctx context.Context) (int, error) {
	jobs, err := repository.NewBroadcastRepository(b.db).Claim(ctx, b.claimLimit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, job := range jobs {
		n, err := b.fanout(ctx, job)
		switch {
		case errors.Is(err, errBroadcastGone):
			logger.Info("broadcast deleted during fan-out", zap.String("job", job.ID), zap.Int64("receivers", n))
			if err := repository.NewBroadcastRepository(b.db).Finish(ctx, job.ID, n); err != nil {
				return done, err
			}
			continue
		case err != nil:
			logger.Error("broadcast fan-out failed, releasing job", zap.String("job", job.ID), zap.Error(err))
			if err := repository.NewBroadcastRepository(b.db).Release(ctx, job.ID); err != nil {
				logger.Error("broadcast release failed", zap.String("job", job.ID), zap.Error(err))
			}
			continue
		}
		if err := repository.NewBroadcastRepository(b.db).Finish(ctx, job.ID, n); err != nil {
			return done, err
		}
		metrics.BroadcastFanout.Observe(time.Since(job.CreatedAt).Seconds())
		done++
	}
	return done, nil
}

var errBroadcastGone = errors.New("broadcast notification no longer exists")

// fanout 按批挂接接收者；每批在共享锁下重新确认通知存在，避免与 DeleteBroadcast 交错，
// 只给本批新挂接的用户推送 CREATED
func (b *Broadcaster) fanout(ctx context.Context, job *model.BroadcastJob) (int64, error) {
	users := repository.NewUserRepository(b.db)
	var total int64
	for offset := 0; ; offset += b.batchSize {
		ids, err := users.ListIDs(ctx, offset, b.batchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}
		var added []string
		err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := repository.NewNotificationRepository(tx)
			n, err := repo.Lock(ctx, job.NotificationID, false)
			if err != nil {
				return err
			}
			if n == nil {
				return errBroadcastGone
			}
			added, err = repo.AddNewReceivers(ctx, job.NotificationID, ids)
			return err
		})
		if err != nil {
			return total, err
		}
		var ev Events
		for _, uid := range added {
			ev.Add(relay.NotificationTopic(uid), relay.StatusCreated, job.NotificationID)
		}
		ev.Flush(ctx, b.publisher)
		total += int64(len(added))
		if len(ids) < b.batchSize {
			break
		}
	}
	return total, nil
}
