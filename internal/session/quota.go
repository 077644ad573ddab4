package session

import "sync"

// QuotaRefusal is the reply once the free messages are used up.
const QuotaRefusal = "Free message limit reached. Please start a new session to continue."

// Quota counts free messages. A limit of 0 or less never refuses.
type Quota struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewQuota creates a quota allowing limit messages.
func NewQuota(limit int) *Quota {
	return &Quota{limit: limit}
}

// Take consumes one message. It returns the messages left after this one,
// or -1 when unlimited, and false once the limit was already reached.
func (q *Quota) Take() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit <= 0 {
		return -1, true
	}
	if q.used >= q.limit {
		return 0, false
	}
	q.used++
	return q.limit - q.used, true
}

// Remaining returns the messages left, or -1 when unlimited.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit <= 0 {
		return -1
	}
	return q.limit - q.used
}
