package performer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// DefaultWorkerPoolSize is the number of concurrent storage tasks when
// Options.WorkerPoolSize is not set.
const DefaultWorkerPoolSize = 16

// Pool bounds the number of storage tasks running at the same time across
// all operations of a Service.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool of the given size. Non-positive sizes select
// DefaultWorkerPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultWorkerPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return p.size
}

// fanOut runs fn once per index in [0, n) and waits for all of them.
//
// Each task receives its own operation state: parameters derived from o's
// provider and its own OpenedStorages, terminated by the task itself. Warnings
// of the tasks are appended to o in index order once all tasks are done.
// The first error returned by a task cancels the others and is returned.
//
// A single task, a nested fan-out, and every fan-out of a modifying
// operation run inline on o, so writes share one transaction per storage
// and nested tasks never wait for pool slots held by their parents.
func (o *operation) fanOut(n int, fn func(i int, t *operation) error) error {
	if n == 0 {
		return nil
	}
	if n == 1 || o.inTask || o.modify {
		for i := 0; i < n; i++ {
			if err := fn(i, o); err != nil {
				return err
			}
		}
		return nil
	}

	o.svc.metrics.RecordFanOut(o.name, n)

	g, gctx := errgroup.WithContext(o.ctx)
	provider := o.params.Provider()
	tasks := make([]*operation, n)
	for i := range tasks {
		t := o.task(gctx, provider())
		tasks[i] = t
		g.Go(func() error {
			if err := o.svc.pool.sem.Acquire(gctx, 1); err != nil {
				t.params.AddWarning(folder.Warning{
					Code:    folder.ErrUnexpected,
					Message: fmt.Sprintf("storage task interrupted: %v", err),
				})
				return nil
			}
			defer o.svc.pool.sem.Release(1)
			return t.runTask(func() error { return fn(i, t) })
		})
	}
	err := g.Wait()

	for _, t := range tasks {
		for _, w := range t.params.Warnings() {
			o.params.AddWarning(w)
		}
	}
	return err
}

// runTask executes fn and terminates the storages the task opened.
func (t *operation) runTask(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Operation %s [%s] task panicked: %v", t.name, t.id, r)
			err = fmt.Errorf("panic in %s task: %v", t.name, r)
		}
		term := context.WithoutCancel(t.ctx)
		if err != nil {
			t.opened.RollbackAll(term)
			return
		}
		err = t.opened.CommitAll(term)
	}()
	return fn()
}

// escalate turns the first warning recorded since mark into an error. It is
// used when every task of a fan-out failed and the result would otherwise
// be silently empty.
func (o *operation) escalate(mark int) error {
	warnings := o.params.Warnings()
	if len(warnings) <= mark {
		return folder.NewError(folder.ErrUnexpected, "", "", "all storages failed")
	}
	return warnings[mark].AsError()
}
