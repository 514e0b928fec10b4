package relax

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use parallel
// processing. Below this, single-threaded is faster due to goroutine
// overhead.
const parallelThreshold = 64

// workChunk represents a range of particles for a worker to process.
type workChunk struct {
	start, end int
}

// pool runs per-particle phase functions over persistent workers.
// Phases hand out disjoint index ranges, so workers never write the same
// memory; the dispatch/completion channels form the barrier between
// phases.
type pool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running

	fn func(start, end, worker int) // current phase function
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &pool{numWorkers: workers}
}

// start launches persistent worker goroutines.
func (p *pool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stop signals all workers to exit and waits for them.
func (p *pool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.fn(chunk.start, chunk.end, id)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes fn over [0,n) and returns when every chunk is done.
// Small ranges run inline on worker slot 0.
func (p *pool) run(n int, fn func(start, end, worker int)) {
	if n == 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		fn(0, n, 0)
		return
	}

	if !p.running {
		p.start()
	}

	// The fn write is published to workers by the chunk sends below.
	p.fn = fn

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
