package domain

import "time"

type UserID string
type QueueID string

// JobQueue is a live entry in a user's active job set.
type JobQueue struct {
	QueueID   QueueID
	ExpiresAt time.Time
}
