// Package watchdog schedules a periodic liveness sweep of the session
// table on a cron-style interval, an explicit, scheduled replacement for
// the teacher's ad-hoc time.Ticker polling loop in service/streaming.go.
// spec.md's state machine defines the states; nothing in spec.md schedules
// a sweep, so this is additive, not a contradiction of any invariant.
package watchdog

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JuanCF/scrcpy-mcp/internal/session"
)

// Watchdog periodically logs the state of every tracked session and gives
// a hook for future active health checks. Teardown itself is already
// triggered by the session's own reader/writer loops on socket error; the
// sweep here is diagnostic, not the primary failure-detection path.
type Watchdog struct {
	cron     *cron.Cron
	sessions *session.Manager
	interval time.Duration
}

// New builds a Watchdog over the given session manager at the given sweep
// interval (config.Config.WatchdogInterval).
func New(sessions *session.Manager, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watchdog{
		cron:     cron.New(),
		sessions: sessions,
		interval: interval,
	}
}

// Start schedules the sweep and begins running it in the background.
func (w *Watchdog) Start() error {
	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(spec, w.sweep); err != nil {
		return fmt.Errorf("scheduling session watchdog: %w", err)
	}
	w.cron.Start()
	log.Printf("🐕 session watchdog sweeping every %s", w.interval)
	return nil
}

// Stop cancels future sweeps and waits for any in-flight sweep to finish.
func (w *Watchdog) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

// sweep logs every tracked session's current lifecycle state. A session
// stuck in Connecting past several sweeps, or one the map still carries
// after its sockets closed, is the signal an operator looks for here; the
// session's own teardown path (spec.md §4.D) is what actually removes it.
func (w *Watchdog) sweep() {
	sessions := w.sessions.All()
	if len(sessions) == 0 {
		return
	}
	for _, s := range sessions {
		log.Printf("🐕 watchdog: %s state=%s socket=%s", s.Serial, s.State(), s.SocketName())
	}
}
