package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veedran/reelsmith/pkg/log"
)

// Registry is the canonical in-memory job store. Callers only ever see
// snapshots; the single record per id is mutated through Update under the
// registry lock, so readers observe either the pre- or post-update state.
//
// Jobs are never evicted. The source system kept its full history for the
// process lifetime and status queries rely on that.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	seq  uint64
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Create inserts a fresh queued job and returns its snapshot. The job is
// visible to Get/List before any worker has touched it.
func (r *Registry) Create(req Request) *Job {
	job := &Job{
		ID:          uuid.New().String(),
		Status:      StatusQueued,
		TotalStages: TotalStages,
		StageName:   "queued",
		CreatedAt:   time.Now(),
		Request:     req,
	}

	r.mu.Lock()
	r.seq++
	job.seq = r.seq
	r.jobs[job.ID] = job
	snapshot := cloneJob(job)
	r.mu.Unlock()

	return snapshot
}

func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns all known jobs, most recent first.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	ret := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		ret = append(ret, cloneJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].seq > ret[j].seq
	})
	return ret
}

// Update applies mutate to the record and returns the resulting snapshot.
// The second return value is false when the id is unknown. Mutations that
// would regress the status, or touch a job that already reached a terminal
// status, are discarded and the current snapshot is returned instead.
func (r *Registry) Update(id string, mutate func(*Job)) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}

	if job.Status.Terminal() {
		return cloneJob(job), true
	}

	next := cloneJob(job)
	mutate(next)
	next.ID = job.ID
	next.CreatedAt = job.CreatedAt
	next.TotalStages = job.TotalStages
	next.seq = job.seq

	if next.Status.rank() < job.Status.rank() {
		log.Warn("Rejected status regression for job %s: %s -> %s", job.ID, job.Status, next.Status)
		return cloneJob(job), true
	}
	if next.Progress < job.Progress {
		next.Progress = job.Progress
	}
	if next.Status.Terminal() && next.CompletedAt == nil {
		now := time.Now()
		next.CompletedAt = &now
	}

	r.jobs[id] = next
	return cloneJob(next), true
}

// CountByStatus reports how many jobs currently hold the given status.
func (r *Registry) CountByStatus(status Status) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, job := range r.jobs {
		if job.Status == status {
			count++
		}
	}
	return count
}

// Len reports the total number of known jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		tmp.CompletedAt = &completed
	}
	if job.Result != nil {
		result := *job.Result
		tmp.Result = &result
	}
	return &tmp
}
