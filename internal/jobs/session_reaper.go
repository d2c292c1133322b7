package jobs

import (
	"log"
	"sync"
	"time"

	"github.com/solomonczyk/sales-voice-assistant/internal/eventlog"
	"github.com/solomonczyk/sales-voice-assistant/internal/session"
)

// SessionReaper ends dialog sessions that have been idle longer than the
// configured threshold. Callers are expected to end their own sessions; the
// reaper is the backstop for the ones that never do.
type SessionReaper struct {
	sessions *session.Store
	events   *eventlog.Logger
	logger   *log.Logger
	idle     time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSessionReaper creates a new session reaper. idle is the inactivity
// threshold after which a session is ended.
func NewSessionReaper(sessions *session.Store, events *eventlog.Logger, logger *log.Logger, idle, interval time.Duration) *SessionReaper {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &SessionReaper{
		sessions: sessions,
		events:   events,
		logger:   logger,
		idle:     idle,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *SessionReaper) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("SessionReaper: started (idle=%v, interval=%v)", j.idle, j.interval)
}

// Stop gracefully stops the background job.
func (j *SessionReaper) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("SessionReaper: stopped")
}

func (j *SessionReaper) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *SessionReaper) sweep() {
	ended := j.sessions.EndIdle(j.idle)
	if len(ended) == 0 {
		return
	}
	for _, id := range ended {
		j.events.LogAsync(id, eventlog.EventSessionEnded, map[string]any{"reason": "idle"})
	}
	j.logger.Printf("SessionReaper: ended %d idle sessions", len(ended))
}
