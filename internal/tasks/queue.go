package tasks

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
)

// Job is one queued unit of work.
type Job struct {
	Name string
	Run  func() error
}

// NewJob wraps a spec and config as a queueable job.
func NewJob(spec Spec, cfg Config) Job {
	return Job{
		Name: spec.Name,
		Run:  func() error { return Run(spec, cfg) },
	}
}

// Result reports one finished job.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Queue runs jobs strictly one at a time, in the order added. A failed or
// panicking job never blocks the ones behind it.
type Queue struct {
	jobs []Job
}

// Add appends a job to the queue.
func (q *Queue) Add(j Job) {
	q.jobs = append(q.jobs, j)
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Start launches the single worker goroutine and returns its result channel,
// closed once the queue drains. Closing stop skips any job not yet started;
// the in-flight job always runs to completion.
func (q *Queue) Start(stop <-chan struct{}) <-chan Result {
	results := make(chan Result, len(q.jobs))
	go func() {
		defer close(results)
		for _, job := range q.jobs {
			select {
			case <-stop:
				return
			default:
			}
			start := time.Now()
			err := runScoped(job)
			results <- Result{Name: job.Name, Err: err, Elapsed: time.Since(start)}
		}
	}()
	return results
}

// runScoped runs one job and reclaims as much memory as possible afterward,
// so a queue of multi-hour trainings never accretes the previous task's
// working set.
func runScoped(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task %s panicked: %v", job.Name, r)
		}
		runtime.GC()
		debug.FreeOSMemory()
	}()
	return job.Run()
}
