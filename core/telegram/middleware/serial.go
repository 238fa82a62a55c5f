package middleware

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/bookbot/core/logger"
	tghelpers "github.com/m3rciful/bookbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ActorQueue runs submitted work one at a time per actor, in submission order.
// Distinct actors proceed concurrently. A lane goroutine exists only while its actor has work.
type ActorQueue struct {
	mu     sync.Mutex
	lanes  map[int64]*lane
	wg     sync.WaitGroup
	closed bool
}

type lane struct {
	pending []func()
}

// NewActorQueue returns an empty queue.
func NewActorQueue() *ActorQueue {
	return &ActorQueue{lanes: make(map[int64]*lane)}
}

// Submit appends fn to the actor's lane. It reports false once the queue is closed.
func (q *ActorQueue) Submit(actorID int64, fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	l, running := q.lanes[actorID]
	if !running {
		l = &lane{}
		q.lanes[actorID] = l
	}
	l.pending = append(l.pending, fn)
	if running {
		q.mu.Unlock()
		return true
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go q.drain(actorID, l)
	return true
}

func (q *ActorQueue) drain(actorID int64, l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			delete(q.lanes, actorID)
			q.mu.Unlock()
			return
		}
		fn := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		q.mu.Unlock()

		runSafely(actorID, fn)
	}
}

func runSafely(actorID int64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(logger.Background(), "tg", "tg.panic",
				slog.Int64("actor_id", actorID),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}

// Active returns the number of actors with queued or running work.
func (q *ActorQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// Close rejects new work and waits for queued work to finish.
func (q *ActorQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

// SerialPerActor hands each update to the sender's lane so one actor's updates are handled
// in receipt order while different actors run in parallel. Updates without a sender run inline.
// It expects telebot to deliver updates synchronously so receipt order equals submit order.
func SerialPerActor(q *ActorQueue) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}
			accepted := q.Submit(sender.ID, func() {
				if err := next(c); err != nil {
					logger.Warn(tghelpers.BuildContext(c), "tg", "handler.error",
						slog.Int64("actor_id", sender.ID),
						slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
					)
				}
			})
			if !accepted {
				logger.Warn(logger.Background(), "tg", "update.dropped",
					slog.Int64("actor_id", sender.ID),
					slog.String("reason", "queue_closed"),
				)
			}
			return nil
		}
	}
}
