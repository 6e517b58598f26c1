package models

import "time"

// SignoffColumn names one review column of the ledger.
type SignoffColumn string

const (
	ColumnGeneral      SignoffColumn = "general"
	ColumnACIS         SignoffColumn = "acis"
	ColumnACISSI       SignoffColumn = "acis-si-mode"
	ColumnHRCSI        SignoffColumn = "hrc-si-mode"
	ColumnVerification SignoffColumn = "verification"
)

// ReviewColumns are the four category columns seeded from a revision.
var ReviewColumns = []SignoffColumn{ColumnGeneral, ColumnACIS, ColumnACISSI, ColumnHRCSI}

// Valid reports whether c is a known ledger column.
func (c SignoffColumn) Valid() bool {
	switch c {
	case ColumnGeneral, ColumnACIS, ColumnACISSI, ColumnHRCSI, ColumnVerification:
		return true
	default:
		return false
	}
}

// ColumnState is the sign-off state of one column.
type ColumnState string

const (
	StateNotApplicable ColumnState = "na"
	StatePending       ColumnState = "pending"
	StateSigned        ColumnState = "signed"
)

// ColumnStatus is one ledger cell.
type ColumnStatus struct {
	State  ColumnState `json:"state"`
	Signer string      `json:"signer,omitempty"`
	Date   *time.Time  `json:"date,omitempty"`
}

// NotApplicable returns a not-applicable cell.
func NotApplicable() ColumnStatus { return ColumnStatus{State: StateNotApplicable} }

// Pending returns a pending cell.
func Pending() ColumnStatus { return ColumnStatus{State: StatePending} }

// Signed returns a cell signed by signer at date.
func Signed(signer string, date time.Time) ColumnStatus {
	d := date
	return ColumnStatus{State: StateSigned, Signer: signer, Date: &d}
}

// SignoffEntry is the ledger row for one revision.
type SignoffEntry struct {
	ID        RevisionID     `json:"id"`
	SeqNbr    string         `json:"seqNbr"`
	Submitter string         `json:"submitter"`
	// Mode is the submission mode of the revision; empty on legacy rows.
	Mode         SubmissionMode `json:"mode,omitempty"`
	General      ColumnStatus   `json:"general"`
	ACIS         ColumnStatus   `json:"acis"`
	ACISSI       ColumnStatus   `json:"acisSiMode"`
	HRCSI        ColumnStatus   `json:"hrcSiMode"`
	Verification ColumnStatus   `json:"verification"`
	CreatedAt    time.Time      `json:"createdAt"`
	// UpdatedAt is the row version presented back by clients on mutation.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Column returns a pointer to the named cell, or nil for an unknown column.
func (e *SignoffEntry) Column(c SignoffColumn) *ColumnStatus {
	switch c {
	case ColumnGeneral:
		return &e.General
	case ColumnACIS:
		return &e.ACIS
	case ColumnACISSI:
		return &e.ACISSI
	case ColumnHRCSI:
		return &e.HRCSI
	case ColumnVerification:
		return &e.Verification
	default:
		return nil
	}
}

// ReviewsComplete reports whether every applicable review column is signed.
func (e *SignoffEntry) ReviewsComplete() bool {
	for _, c := range ReviewColumns {
		if e.Column(c).State == StatePending {
			return false
		}
	}
	return true
}

// Approved is derived: all applicable columns plus verification signed.
func (e *SignoffEntry) Approved() bool {
	return e.ReviewsComplete() && e.Verification.State == StateSigned
}

// SignoffFilter narrows ledger listings.
type SignoffFilter struct {
	Obsid       int
	PendingOnly bool
	Signer      string
	Limit       int
}

// ApprovalEntry is one live row of the approval registry.
type ApprovalEntry struct {
	Obsid  int       `json:"obsid"`
	SeqNbr string    `json:"seqNbr"`
	Signer string    `json:"signer"`
	Date   time.Time `json:"date"`
}
