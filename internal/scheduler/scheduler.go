// Package scheduler triggers due SCHEDULED campaigns. The campaign row's
// status and scheduled_for column are the durable job record, so pending
// executions survive process restarts; this poller is only the trigger.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/models"
)

type DueLister interface {
	ListDue(ctx context.Context, now time.Time) ([]models.Campaign, error)
}

type Executor interface {
	Execute(ctx context.Context, campaignID string) error
}

type Scheduler struct {
	cron      *cron.Cron
	campaigns DueLister
	executor  Executor
	timeout   time.Duration
	log       *logrus.Entry
}

func New(campaigns DueLister, executor Executor, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		cron:      cron.New(),
		campaigns: campaigns,
		executor:  executor,
		timeout:   5 * time.Minute,
		log:       log,
	}
}

func (s *Scheduler) Start() {
	s.cron.AddFunc("@every 30s", s.processDue)
	s.cron.Start()
}

// Stop halts the cron loop; a campaign already in SENDING runs to
// completion.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) processDue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	due, err := s.campaigns.ListDue(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Error("listing due campaigns failed")
		return
	}

	for _, c := range due {
		err := s.executor.Execute(ctx, c.ID)
		switch {
		case err == nil:
			s.log.WithField("campaign_id", c.ID).Info("scheduled campaign executed")
		case apperrors.IsPrecondition(err):
			// Another trigger won the SCHEDULED -> SENDING race.
			s.log.WithField("campaign_id", c.ID).Debug("campaign already picked up")
		default:
			s.log.WithError(err).WithField("campaign_id", c.ID).Error("scheduled campaign execution failed")
		}
	}
}
