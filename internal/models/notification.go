package models

import "time"

// NotificationKind distinguishes submission notices from approval removals.
type NotificationKind string

const (
	NotifyRevision NotificationKind = "revision"
	NotifyRemoval  NotificationKind = "approval-removal"
)

// Notification is the payload handed to the notification dispatcher.
type Notification struct {
	ID            string           `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Mode          SubmissionMode   `json:"mode"`
	Revision      RevisionID       `json:"revision"`
	User          string           `json:"user"`
	Changes       ChangeSet        `json:"changes"`
	RelatedObsids []int            `json:"relatedObsids,omitempty"`
	Summary       string           `json:"summary"`
	Routes        RoutingFlags     `json:"routes"`
	CreatedAt     time.Time        `json:"createdAt"`
}
