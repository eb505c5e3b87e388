package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sender delivers a single staff notification.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

type notifyTask struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NotifyWorker queues staff notifications and delivers them with
// bounded retries. Redis backs the queue when available so pending
// notifications survive a restart; otherwise an in-memory channel
// serves as fallback. It satisfies domain.Notifier.
type NotifyWorker struct {
	sender        Sender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan notifyTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	logger        *zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults.
func NewNotifyWorker(sender Sender, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		sender:        sender,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan notifyTask, 128),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		logger:        logger,
	}
}

// Notify accepts a message for asynchronous delivery.
func (w *NotifyWorker) Notify(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("notification text is required")
	}

	task := notifyTask{Text: text, CreatedAt: time.Now()}

	// Redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("notify: redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return errors.New("notification queue is full")
	}
}

// Start runs the delivery loop until ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify worker started")
	defer w.logger.Info().Msg("notify worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.deliver(ctx, t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.deliver(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *NotifyWorker) tryLocalQueue() (notifyTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return notifyTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (notifyTask, bool) {
	if w.redis == nil {
		return notifyTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("notify: redis BRPOP error")
		}
		return notifyTask{}, false
	}
	if len(res) != 2 {
		return notifyTask{}, false
	}
	var task notifyTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("notify: decode redis task")
		return notifyTask{}, false
	}
	return task, true
}

// deliver sends with exponential backoff; exhausted tasks go to the
// dead letter list.
func (w *NotifyWorker) deliver(ctx context.Context, task notifyTask) {
	for attempt := 1; ; attempt++ {
		err := w.sender.SendText(ctx, task.Text)
		if err == nil {
			return
		}

		if attempt >= w.retryPolicy.MaxRetries {
			w.logger.Error().Err(err).Int("attempts", attempt).Msg("notify: giving up on notification")
			w.pushDeadLetter(ctx, task)
			return
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("notify: delivery failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task notifyTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task notifyTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Msg("notify: deadletter push failed")
	}
}
