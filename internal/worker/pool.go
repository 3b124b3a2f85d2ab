package worker

import (
	"context"
	"sync"
)

// Pool runs size poll loops over one shared queue. The claim transaction in
// the store keeps concurrent loops from taking the same task.
type Pool struct {
	size   int
	runner *Runner
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(ctx context.Context, runner *Runner, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Pool{
		size:   size,
		runner: runner,
		ctx:    cctx,
		cancel: cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runner.Run(p.ctx)
		}()
	}
}

func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
