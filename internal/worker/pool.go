package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task 异步任务
type Task func()

// Stats 协程池统计
type Stats struct {
	WorkerCount int
	QueueLen    int
	QueueCap    int
	Submitted   uint64
	Executed    uint64
	Failed      uint64
	Dropped     uint64
}

// Pool 固定大小的协程池，Stop 会等待已入队任务执行完毕
type Pool struct {
	workers int
	queue   chan Task
	logger  *zap.SugaredLogger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once

	submitted atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewPool 创建并启动协程池
func NewPool(workers, queueSize int, logger *zap.SugaredLogger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	p := &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		logger:  logger.Named("worker"),
	}
	for range workers {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Debugf("Worker pool started with %d workers", workers)
	return p
}

// Submit 非阻塞提交，队列满或已停止时返回 false
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("Worker pool queue is full, task dropped")
		return false
	}
}

// SubmitWait 阻塞提交，直到入队、ctx 取消或池停止
func (p *Pool) SubmitWait(ctx context.Context, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop 停止接收任务并等待队列排空，可重复调用
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Debug("Worker pool stopped")
	})
}

// GetStats 返回当前统计
func (p *Pool) GetStats() Stats {
	return Stats{
		WorkerCount: p.workers,
		QueueLen:    len(p.queue),
		QueueCap:    cap(p.queue),
		Submitted:   p.submitted.Load(),
		Executed:    p.executed.Load(),
		Failed:      p.failed.Load(),
		Dropped:     p.dropped.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		if task == nil {
			continue
		}
		p.execute(task)
	}
}

// execute 执行任务并捕获 panic
func (p *Pool) execute(task Task) {
	defer func() {
		p.executed.Add(1)
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Errorf("Panic recovered in async task: %v", r)
		}
	}()
	task()
}
