package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shinyyama/campus-exchange/internal/service"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 2 * time.Minute

type Sweeper interface {
	SweepExpired(ctx context.Context) (service.SweepResult, error)
}

// Observer is told how each sweep went. Implemented by *metrics.Metrics.
type Observer interface {
	SweepFinished(closed int64, warned int, err error)
}

// Scheduler runs the request expiry sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	obs     Observer
	ctx     context.Context
}

func New(spec string, sweeper Sweeper, obs Observer) (*Scheduler, error) {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		sweeper: sweeper,
		obs:     obs,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, func() { _, _ = s.RunOnce(s.ctx) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduling and stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	logrus.WithField("entries", len(s.cron.Entries())).Info("worker: scheduler started")
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		logrus.Info("worker: scheduler stopped")
	}()
}

func (s *Scheduler) RunOnce(ctx context.Context) (service.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.sweeper.SweepExpired(ctx)
	if s.obs != nil {
		s.obs.SweepFinished(res.Closed, res.Warned, err)
	}
	entry := logrus.WithFields(logrus.Fields{
		"closed":   res.Closed,
		"warned":   res.Warned,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("worker: expiry sweep failed")
		return res, err
	}
	if res.Closed > 0 || res.Warned > 0 {
		entry.Info("worker: expiry sweep")
	} else {
		entry.Debug("worker: expiry sweep")
	}
	return res, nil
}
