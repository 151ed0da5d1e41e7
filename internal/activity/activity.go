// Package activity records the audit trail. Entries are queued and written by
// a single background worker so a slow or failing insert never holds up the
// mutation that produced it.
package activity

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

const writeTimeout = 5 * time.Second

type entry struct {
	log     *model.ActivityLog
	flushed chan struct{}
}

// Logger appends activity entries asynchronously.
type Logger struct {
	db      *sqlx.DB
	queue   chan entry
	done    chan struct{}
	onWrite func()

	mu     sync.RWMutex
	closed bool
}

// New starts a logger with room for buffer pending entries. onWrite, if
// non-nil, runs after every successful insert.
func New(db *sqlx.DB, buffer int, onWrite func()) *Logger {
	if buffer < 1 {
		buffer = 1
	}
	l := &Logger{
		db:      db,
		queue:   make(chan entry, buffer),
		done:    make(chan struct{}),
		onWrite: onWrite,
	}
	go l.run()
	return l
}

// Log queues an entry for the session's user. It never blocks: when the
// queue is full the entry is dropped with a warning.
func (l *Logger) Log(sess model.Session, action, description, table, recordID string) {
	a := &model.ActivityLog{
		ID:                uuid.NewString(),
		UserID:            sess.UserID,
		UserEmail:         sess.Email,
		ActionType:        action,
		ActionDescription: description,
		TableName:         table,
		RecordID:          recordID,
		CreatedAt:         time.Now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		slog.Warn("activity logger closed, dropping entry", "action", action, "record", recordID)
		return
	}

	select {
	case l.queue <- entry{log: a}:
	default:
		slog.Warn("activity queue full, dropping entry", "action", action, "record", recordID)
	}
}

// Flush waits until every entry queued before the call has been handled.
func (l *Logger) Flush() {
	ch := make(chan struct{})

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return
	}
	l.queue <- entry{flushed: ch}
	l.mu.RUnlock()

	<-ch
}

// Close stops accepting entries and waits for the queue to drain.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)

	for e := range l.queue {
		if e.flushed != nil {
			close(e.flushed)
			continue
		}
		l.write(e.log)
	}
}

func (l *Logger) write(a *model.ActivityLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := store.InsertActivity(ctx, l.db, a); err != nil {
		slog.Warn("failed to write activity", "action", a.ActionType, "record", a.RecordID, "error", err)
		return
	}
	if l.onWrite != nil {
		l.onWrite()
	}
}

// DisplayName is the short actor name shown in activity summaries: the part
// of the email before the @.
func DisplayName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	if email == "" {
		return "Unknown"
	}
	return email
}
