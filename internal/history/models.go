package history

import "time"

// Run is one recorded traversal outcome
type Run struct {
	RunID     int
	Start     string
	Target    string
	Status    string
	Steps     int
	ElapsedMs int64
	Path      []string
	Reason    string
	CreatedAt time.Time
}
