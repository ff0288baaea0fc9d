package middleware

import (
	"context"
	"sync"
	"time"

	"MT5Stream/internal/domain/models"
	domrepo "MT5Stream/internal/domain/repository"
	"MT5Stream/pkg/logger"
)

type mirrorItem struct {
	tick    models.Tick
	payload []byte
}

// MirrorPipeline sits between the broadcaster and external sinks (Redis,
// Kafka). Enqueue never blocks; a full buffer drops the tick. A background
// worker hands each tick to every sink, backing off when a sink fails.
type MirrorPipeline struct {
	sinks    []domrepo.TickSink
	metrics  domrepo.Metrics
	log      *logger.Logger
	bufSize  int
	attempts int
	timeout  time.Duration
	backoff  time.Duration
	maxBack  time.Duration

	bufCh   chan mirrorItem
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	started bool
	stopped bool
}

type PipelineOption func(*MirrorPipeline)

// WithBufferSize sets how many ticks may wait for the sinks.
func WithBufferSize(n int) PipelineOption {
	return func(p *MirrorPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithSinkTimeout bounds a single Mirror call.
func WithSinkTimeout(d time.Duration) PipelineOption {
	return func(p *MirrorPipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRetry sets attempts per sink and the backoff bounds between them.
func WithRetry(attempts int, min, max time.Duration) PipelineOption {
	return func(p *MirrorPipeline) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if min > 0 {
			p.backoff = min
		}
		if max >= p.backoff {
			p.maxBack = max
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *MirrorPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewMirrorPipeline creates a pipeline feeding sinks. Nil sinks are skipped.
func NewMirrorPipeline(metrics domrepo.Metrics, sinks []domrepo.TickSink, opts ...PipelineOption) *MirrorPipeline {
	p := &MirrorPipeline{
		metrics:  metrics,
		log:      logger.Nop(),
		bufSize:  1024,
		attempts: 3,
		timeout:  5 * time.Second,
		backoff:  50 * time.Millisecond,
		maxBack:  2 * time.Second,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan mirrorItem, p.bufSize)
	return p
}

// Sinks returns the names of the attached sinks.
func (p *MirrorPipeline) Sinks() []string {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Enqueue schedules t for mirroring. It returns false when the tick was
// dropped because the buffer is full or the pipeline has stopped.
func (p *MirrorPipeline) Enqueue(t models.Tick, payload []byte) bool {
	if len(p.sinks) == 0 {
		return true
	}
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return false
	}

	select {
	case p.bufCh <- mirrorItem{tick: t, payload: payload}:
		return true
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return false
	}
}

// Start launches the background worker. Calling it twice is a no-op.
func (p *MirrorPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop stops accepting ticks, flushes what is buffered and waits for the
// worker to exit.
func (p *MirrorPipeline) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	<-p.done
}

func (p *MirrorPipeline) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			p.drain(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		case item := <-p.bufCh:
			p.deliver(ctx, item)
		}
	}
}

func (p *MirrorPipeline) drain(ctx context.Context) {
	for {
		select {
		case item := <-p.bufCh:
			p.deliver(ctx, item)
		default:
			return
		}
	}
}

func (p *MirrorPipeline) deliver(ctx context.Context, item mirrorItem) {
	for _, sink := range p.sinks {
		start := time.Now()
		if err := p.mirrorWithRetry(ctx, sink, item); err != nil {
			p.metrics.RecordError("sink_" + sink.Name())
			p.log.Warn("mirror failed, tick dropped",
				logger.String("sink", sink.Name()),
				logger.String("symbol", item.tick.Symbol),
				logger.Error(err),
			)
			continue
		}
		p.metrics.RecordLatency("sink_"+sink.Name(), time.Since(start).Seconds())
	}
}

func (p *MirrorPipeline) mirrorWithRetry(ctx context.Context, sink domrepo.TickSink, item mirrorItem) error {
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err = sink.Mirror(callCtx, item.tick, item.payload)
		cancel()
		if err == nil || attempt == p.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		// exponential backoff with cap
		backoff *= 2
		if backoff > p.maxBack {
			backoff = p.maxBack
		}
	}
	return err
}
