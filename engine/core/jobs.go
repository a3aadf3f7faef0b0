package core

import (
	"errors"
	"sync"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
)

// Job is a unit of work for the job system. The callbacks run on the worker
// goroutine that ran the job.
type Job struct {
	Run        func() error
	OnComplete func()
	OnFailure  func(err error)
	// OnDone is called last, whatever the outcome.
	OnDone func()
}

// JobSystem runs jobs on a fixed number of worker goroutines.
type JobSystem struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup
	once       sync.Once
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job Job) {
	if job.OnDone != nil {
		defer job.OnDone()
	}
	if err := job.Run(); err != nil {
		LogError(err.Error())
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

// Submit queues job, blocking while the queue is full. Submitting after
// Shutdown panics.
func (js *JobSystem) Submit(job Job) {
	js.jobQueue <- job
}

// Shutdown waits for every queued job and stops the workers.
func (js *JobSystem) Shutdown() {
	js.once.Do(func() {
		close(js.jobQueue)
		js.wg.Wait()
	})
}
