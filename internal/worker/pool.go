package worker

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// FramePool runs per-frame jobs on a bounded goroutine pool.
// Submit blocks while every worker is busy, which throttles the frame reader.
type FramePool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
	log  *zap.Logger
}

// NewFramePool creates a pool with size workers.
func NewFramePool(size int, logger *zap.Logger) (*FramePool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}

	fp := &FramePool{log: logger}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(v interface{}) {
		fp.log.Error("frame job panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, fmt.Errorf("error creating frame pool: %w", err)
	}
	fp.pool = pool
	return fp, nil
}

// Submit schedules job on the pool.
func (p *FramePool) Submit(job func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		job()
	})
	if err != nil {
		p.wg.Done()
		return fmt.Errorf("error submitting frame job: %w", err)
	}
	return nil
}

// Wait blocks until every submitted job has finished.
func (p *FramePool) Wait() {
	p.wg.Wait()
}

// Release waits for outstanding jobs and stops the workers.
func (p *FramePool) Release() {
	p.wg.Wait()
	p.pool.Release()
}
