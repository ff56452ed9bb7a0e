package repository

import "github.com/iliyamo/seat-hold-service/internal/model"

// pendingQueue is a min-heap of reservations ordered by expiry.  Entries
// are pointers to stored reservations, so a reservation that leaves HELD
// stays in the heap until a reader pops it.
type pendingQueue []*model.Reservation

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if q[i].ExpiresAt.Equal(q[j].ExpiresAt) {
		return q[i].ID < q[j].ID
	}
	return q[i].ExpiresAt.Before(q[j].ExpiresAt)
}

func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) { *q = append(*q, x.(*model.Reservation)) }

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
