package cron

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper интерфейс для вытеснения незавершённых диалогов
type Sweeper interface {
	Sweep(ttl time.Duration) int
}

// Scheduler периодически вычищает диалоги, где пользователь замолчал
// на середине сценария
type Scheduler struct {
	cron     *cron.Cron
	log      *slog.Logger
	sweeper  Sweeper
	ttl      time.Duration
	interval time.Duration
}

// New создаёт новый планировщик
func New(log *slog.Logger, sweeper Sweeper, ttl, interval time.Duration) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		log:      log,
		sweeper:  sweeper,
		ttl:      ttl,
		interval: interval,
	}
}

// Start запускает планировщик
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)

	_, err := s.cron.AddFunc(spec, func() {
		evicted := s.sweeper.Sweep(s.ttl)
		if evicted > 0 {
			s.log.Info("stale dialogs evicted", slog.Int("count", evicted))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("Cron scheduler started", slog.String("interval", s.interval.String()))

	return nil
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Cron scheduler stopped")
}
