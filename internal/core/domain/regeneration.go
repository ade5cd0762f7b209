package domain

import "time"

type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RegenerationRun is a snapshot of one library-wide regeneration.
type RegenerationRun struct {
	ID            string     `json:"id"`
	State         RunState   `json:"state"`
	Fields        []string   `json:"fields"`
	BatchSize     int        `json:"batch_size"`
	Total         int        `json:"total"`
	Processed     int        `json:"processed"`
	Progress      float64    `json:"progress"`
	BatchIndex    int        `json:"batch_index"`
	Batches       int        `json:"batches"`
	FailedBatches int        `json:"failed_batches"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Progress is processed/total clamped to [0,1].
func Progress(processed, total int) float64 {
	if total <= 0 {
		return 1
	}
	if processed <= 0 {
		return 0
	}
	p := float64(processed) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// Batches partitions ids into consecutive slices of at most size elements.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
