package services

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"pageflow/backend/internal/recorder"
)

// SweeperService force-stops recording sessions whose browser was abandoned
// (tab closed, client gone) and prunes them from the live registry. This is
// the service-level analog of the forced stop a closing tab delivers.
type SweeperService struct {
	cron   *cron.Cron
	maxAge time.Duration
}

var GlobalSweeper *SweeperService

// InitSweeper starts a minutely sweep of sessions older than maxSessionMinutes.
func InitSweeper(maxSessionMinutes int) error {
	GlobalSweeper = &SweeperService{
		cron:   cron.New(),
		maxAge: time.Duration(maxSessionMinutes) * time.Minute,
	}

	_, err := GlobalSweeper.cron.AddFunc("* * * * *", GlobalSweeper.sweep)
	if err != nil {
		return err
	}

	GlobalSweeper.cron.Start()
	log.Println("Session sweeper initialized")
	return nil
}

func (s *SweeperService) sweep() {
	cutoff := time.Now().Add(-s.maxAge)
	for sessionID, startedAt := range recorder.Sessions.ActiveSessions() {
		if startedAt.Before(cutoff) {
			log.Printf("Sweeping stale recording session %s (started %s)", sessionID, startedAt.Format(time.RFC3339))
			recorder.Sessions.Cleanup(sessionID)
		}
	}
}

func (s *SweeperService) Stop() {
	s.cron.Stop()
}
