package engine

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pthm-cable/motes/particle"
)

// Span is a half-open range [Start, End) of snapshot positions.
type Span struct {
	Start, End int
}

// Len returns the number of positions in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Partition splits n items into workers contiguous spans. Each span has n/workers
// items and the last one also takes the remainder. Spans may be empty.
func Partition(n, workers int) []Span {
	if workers < 1 {
		workers = 1
	}
	spans := make([]Span, workers)
	size := n / workers
	for i := range spans {
		spans[i] = Span{Start: i * size, End: (i + 1) * size}
	}
	spans[workers-1].End = n
	return spans
}

// workChunk is one worker's share of a generation.
type workChunk[T particle.Particle] struct {
	snapshot []T
	span     Span
	elapsed  time.Duration
}

// scheduler is a pool of persistent simulation workers. Worker 0 is the goroutine
// that calls generation; workers 1..threads-1 live in the pool.
type scheduler[T particle.Particle] struct {
	app     App[T]
	threads int
	log     *slog.Logger

	// Worker pool channels
	workChan chan workChunk[T] // sends work to workers
	doneChan chan error        // workers signal completion
	stopChan chan struct{}     // signals workers to exit
	wg       sync.WaitGroup    // tracks active workers
	running  bool              // true if workers are running
}

func newScheduler[T particle.Particle](app App[T], threads int, log *slog.Logger) *scheduler[T] {
	if threads < 1 {
		threads = 1
	}
	return &scheduler[T]{app: app, threads: threads, log: log}
}

// startWorkers launches persistent worker goroutines.
func (s *scheduler[T]) startWorkers() {
	if s.running {
		return
	}

	s.workChan = make(chan workChunk[T], s.threads)
	s.doneChan = make(chan error, s.threads)
	s.stopChan = make(chan struct{})
	s.running = true

	for i := 1; i < s.threads; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (s *scheduler[T]) stopWorkers() {
	if !s.running {
		return
	}

	close(s.stopChan)
	s.wg.Wait()
	close(s.workChan)
	close(s.doneChan)
	s.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (s *scheduler[T]) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		case chunk, ok := <-s.workChan:
			if !ok {
				return
			}
			s.doneChan <- s.simulate(id, chunk)
		}
	}
}

// generation runs Simulate over every non-empty span of snapshot and returns once all
// of them have finished. The caller holds the shared lock for the whole call.
func (s *scheduler[T]) generation(snapshot []T, elapsed time.Duration) error {
	spans := Partition(len(snapshot), s.threads)

	dispatched := 0
	for _, sp := range spans[1:] {
		if sp.Len() == 0 {
			continue
		}
		s.workChan <- workChunk[T]{snapshot: snapshot, span: sp, elapsed: elapsed}
		dispatched++
	}

	var first error
	if spans[0].Len() > 0 {
		first = s.simulate(0, workChunk[T]{snapshot: snapshot, span: spans[0], elapsed: elapsed})
	}

	// Barrier: every dispatched span reports back before the generation ends.
	for i := 0; i < dispatched; i++ {
		if err := <-s.doneChan; err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *scheduler[T]) simulate(id int, c workChunk[T]) (err error) {
	defer recoverHook(id, "Simulate", s.log, &err)
	s.app.Simulate(c.snapshot, c.snapshot[c.span.Start:c.span.End], c.elapsed)
	return nil
}

// recoverHook turns a panic in a user callback into a *WorkerPanicError stored in err.
// It must be deferred directly.
func recoverHook(worker int, hook string, log *slog.Logger, err *error) {
	r := recover()
	if r == nil {
		return
	}
	pe := &WorkerPanicError{Worker: worker, Hook: hook, Value: r, Stack: debug.Stack()}
	log.Error("hook panicked",
		"hook", hook,
		"worker", worker,
		"panic", fmt.Sprint(r),
	)
	*err = pe
}
