package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

const (
	journalQueueSize    = 4096
	journalWriteTimeout = 5 * time.Second
)

// Journal decouples the broadcast path from drawing-log persistence: the
// router enqueues commands without blocking and a single writer goroutine
// drains them to the repository in order. One writer keeps per-room log
// order equal to dispatch order, including clears, so a pre-clear command
// can never land after its clear entry.
//
// A write failure is logged and the command dropped; there is no retry, so
// a sustained storage failure cannot build an unbounded backlog. Losing a
// stroke segment from history is preferred over stalling live fan-out.
//
// The queue channel is never closed: Shutdown signals a separate stop
// channel and the writer drains what is queued before exiting, so an
// enqueue racing a shutdown is refused or dropped, never a send on a
// closed channel.
type Journal struct {
	repo  repository.CommandRepository
	queue chan domain.DrawingCommand
	stop  chan struct{}
	once  sync.Once
	done  chan struct{}
}

// NewJournal creates a Journal writing to repo.
func NewJournal(repo repository.CommandRepository) *Journal {
	if repo == nil {
		panic("CommandRepository cannot be nil for Journal")
	}
	return &Journal{
		repo:  repo,
		queue: make(chan domain.DrawingCommand, journalQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until Shutdown signals, then flushes the remaining
// backlog and exits. Run in its own goroutine.
func (j *Journal) Run() {
	log := logrus.WithField("component", "journal")
	log.Info("Journal writer running")
	for {
		select {
		case cmd := <-j.queue:
			j.write(cmd)
		case <-j.stop:
			j.drain()
			close(j.done)
			log.Info("Journal writer stopped")
			return
		}
	}
}

// drain flushes everything queued at shutdown time.
func (j *Journal) drain() {
	for {
		select {
		case cmd := <-j.queue:
			j.write(cmd)
		default:
			return
		}
	}
}

// Enqueue queues one command for persistence without blocking. Returns
// false when the command was dropped because the queue is full or the
// journal is shutting down.
func (j *Journal) Enqueue(cmd domain.DrawingCommand) bool {
	select {
	case <-j.stop:
		return false
	default:
	}
	select {
	case j.queue <- cmd:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"room": cmd.RoomCode,
			"type": cmd.Type,
		}).Warn("Journal queue full, dropping command")
		return false
	}
}

// Shutdown stops accepting commands, flushes what is queued and waits for
// the writer to finish, up to the context deadline.
func (j *Journal) Shutdown(ctx context.Context) {
	j.once.Do(func() { close(j.stop) })
	select {
	case <-j.done:
	case <-ctx.Done():
		logrus.Warn("Journal shutdown timed out before flush completed")
	}
}

func (j *Journal) write(cmd domain.DrawingCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	var err error
	if cmd.Type == domain.CommandClear {
		err = j.repo.Clear(ctx, cmd)
	} else {
		err = j.repo.Append(ctx, cmd)
	}
	if err != nil {
		// Swallowed: history may lose this entry, live broadcast already
		// happened and must not be affected.
		logrus.WithFields(logrus.Fields{
			"room": cmd.RoomCode,
			"type": cmd.Type,
		}).WithError(err).Error("Journal write failed, command dropped")
	}
}
