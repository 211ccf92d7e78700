package domain

import "fmt"

// Status is the ordered lifecycle state of a node. The numeric values are
// meaningful: comparisons such as "before running" are done on the raw value,
// and the ordering is part of the persistence format.
type Status int

const (
	StatusRejected   Status = -3
	StatusFailed     Status = -2
	StatusWaiting    Status = 0
	StatusReady      Status = 1
	StatusPrepared   Status = 2
	StatusRunning    Status = 3
	StatusReviewable Status = 4
	StatusAccepted   Status = 5
	StatusArchived   Status = 6
)

var statusNames = map[Status]string{
	StatusRejected:   "rejected",
	StatusFailed:     "failed",
	StatusWaiting:    "waiting",
	StatusReady:      "ready",
	StatusPrepared:   "prepared",
	StatusRunning:    "running",
	StatusReviewable: "reviewable",
	StatusAccepted:   "accepted",
	StatusArchived:   "archived",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further automated transition applies. Failed is
// terminal for the scheduler; only an operator reset or an automatic retry
// within budget moves it back to Waiting.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusFailed, StatusAccepted, StatusArchived:
		return true
	}
	return false
}

// BeforeRunning reports whether the node has not yet issued external work.
func (s Status) BeforeRunning() bool {
	return s >= StatusWaiting && s < StatusRunning
}

var statusEdges = map[Status][]Status{
	StatusWaiting:    {StatusReady, StatusFailed, StatusRejected},
	StatusReady:      {StatusPrepared, StatusFailed, StatusRejected},
	StatusPrepared:   {StatusRunning, StatusAccepted, StatusFailed, StatusRejected},
	StatusRunning:    {StatusAccepted, StatusReviewable, StatusFailed},
	StatusReviewable: {StatusAccepted, StatusFailed},
	StatusFailed:     {StatusWaiting, StatusArchived},
	StatusAccepted:   {StatusArchived},
	StatusRejected:   {StatusArchived},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
// Rejection edges exist only for operator action on a node that has not
// started running; the engine never takes them on its own.
func CanTransition(from, to Status) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}
