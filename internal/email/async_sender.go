package email

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull    = errors.New("email queue full")
	ErrSenderClosed = errors.New("email sender closed")
)

const deliveryTimeout = 30 * time.Second

// AsyncSender encola correos y los entrega en segundo plano con reintentos.
// Send solo confirma el encolado; los fallos de entrega se registran en el log.
type AsyncSender struct {
	logger  *zap.Logger
	next    Sender
	queue   chan Message
	retries int
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncSender(logger *zap.Logger, next Sender, queueSize, retries int, backoff time.Duration) *AsyncSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if retries < 0 {
		retries = 0
	}
	s := &AsyncSender{
		logger:  logger,
		next:    next,
		queue:   make(chan Message, queueSize),
		retries: retries,
		backoff: backoff,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSender) Send(ctx context.Context, msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSenderClosed
	}
	select {
	case s.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close deja de aceptar correos y espera a que se vacíe la cola.
func (s *AsyncSender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *AsyncSender) run() {
	defer s.wg.Done()
	for msg := range s.queue {
		s.deliver(msg)
	}
}

func (s *AsyncSender) deliver(msg Message) {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 && s.backoff > 0 {
			time.Sleep(s.backoff * time.Duration(attempt))
		}
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err = s.next.Send(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		s.logger.Warn("email delivery attempt failed",
			zap.Error(err),
			zap.String("to", msg.To),
			zap.Int("attempt", attempt+1),
		)
	}
	s.logger.Error("email delivery gave up", zap.Error(err), zap.String("to", msg.To))
}
