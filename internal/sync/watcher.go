// Package sync propagates session changes made by other running instances
// of the client that share the same state database.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/store"
)

// DefaultInterval is used when no positive poll interval is configured.
const DefaultInterval = time.Second

// readTimeout bounds a single revision read.
const readTimeout = 2 * time.Second

// ChangedMsg is a tea.Msg sent when another instance wrote the state
// database.
type ChangedMsg struct {
	Revision store.Revision
}

// ReloadFunc re-reads shared state after the revision advanced, e.g.
// session.KVStore.Reload.
type ReloadFunc func(ctx context.Context) error

// Watcher polls the state database revision and reports writes made by
// other instances.
type Watcher struct {
	store      store.Store
	instanceID string
	interval   time.Duration
	reload     ReloadFunc
	logger     *log.Logger

	changeCh chan ChangedMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	running  bool
	last     int64
}

// New creates a Watcher. Writes recorded with instanceID reload state but
// do not produce a ChangedMsg.
func New(s store.Store, instanceID string, interval time.Duration, reload ReloadFunc, logger *log.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		store:      s,
		instanceID: instanceID,
		interval:   interval,
		reload:     reload,
		logger:     logger,
		changeCh:   make(chan ChangedMsg, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start records the current revision, starts the polling goroutine and
// returns a tea.Cmd that waits for the first change. A stopped watcher can
// be started again.
func (w *Watcher) Start() tea.Cmd {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	if rev, err := w.store.Revision(ctx); err == nil {
		w.setLast(rev.Number)
	} else {
		w.logger.Warn("reading initial revision", "err", err)
	}
	cancel()

	go w.loop(stop)

	return w.WaitForChange()
}

// Stop halts the polling goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.stopCh)
	w.running = false
}

// WaitForChange returns a tea.Cmd that waits for the next foreign write.
// Call it again after handling each ChangedMsg to keep listening.
func (w *Watcher) WaitForChange() tea.Cmd {
	w.mu.Lock()
	stop := w.stopCh
	w.mu.Unlock()

	return func() tea.Msg {
		select {
		case msg := <-w.changeCh:
			return msg
		case <-stop:
			return nil
		}
	}
}

// Check reads the revision once and reloads shared state whenever it
// advanced. Only the last writer is recorded, so a foreign write can sit
// behind a later write of this instance. A ChangedMsg is queued only when
// another instance wrote last, which is also what Check reports.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	rev, err := w.store.Revision(ctx)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	advanced := rev.Number > w.last
	if advanced {
		w.last = rev.Number
	}
	w.mu.Unlock()

	if !advanced {
		return false, nil
	}

	foreign := rev.Writer != w.instanceID
	if foreign {
		w.logger.Debug("state changed by another instance", "revision", rev.Number, "writer", rev.Writer)
	}
	if w.reload != nil {
		if err := w.reload(ctx); err != nil {
			return foreign, err
		}
	}
	if !foreign {
		return false, nil
	}

	msg := ChangedMsg{Revision: rev}
	select {
	case w.changeCh <- msg:
	default:
		// A change is already pending; the receiver will reload anyway.
	}
	return true, nil
}

func (w *Watcher) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
			if _, err := w.Check(ctx); err != nil {
				w.logger.Warn("checking state revision", "err", err)
			}
			cancel()
		}
	}
}

func (w *Watcher) setLast(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = n
}
