package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is a periodic task driven by the scheduler. Name keys its log fields
// and metrics, so it must be unique within a Registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs run on every tick, in registration order.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry preloads jobs. Nil jobs are skipped; a duplicate name panics
// because it is a wiring mistake.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			panic(err)
		}
	}
	return registry
}

// Register adds job unless its name is blank or already taken.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, taken := r.names[name]; taken {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Names lists the registered job names in run order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
