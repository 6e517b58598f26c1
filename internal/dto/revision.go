package dto

import (
	"time"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// RankRemoval asks the rank editor to clear one slot.
type RankRemoval struct {
	Group models.RankGroupName `json:"group" validate:"required,oneof=time roll acis-window"`
	Slot  int                  `json:"slot" validate:"gte=0,lt=10"`
}

// SubmitRevisionRequest carries the edits of one parameter-change session.
// Ranked values are full slot arrays; missing trailing slots are cleared.
type SubmitRevisionRequest struct {
	Mode        models.SubmissionMode  `json:"mode" validate:"required,oneof=normal asis remove clone"`
	Fields      map[string]any         `json:"fields"`
	Ranks       map[string][]any       `json:"ranks" validate:"omitempty,dive,max=10"`
	AppendRanks []models.RankGroupName `json:"appendRanks" validate:"omitempty,dive,oneof=time roll acis-window"`
	RemoveRanks []RankRemoval          `json:"removeRanks" validate:"omitempty,dive"`
}

// HasEdits reports whether the request changes any parameter.
func (r SubmitRevisionRequest) HasEdits() bool {
	return len(r.Fields) > 0 || len(r.Ranks) > 0 || len(r.AppendRanks) > 0 || len(r.RemoveRanks) > 0
}

// SignoffRequest is the body of sign and reverse calls. ObservedAt is the
// entry's updatedAt as last loaded by the client.
type SignoffRequest struct {
	Column     models.SignoffColumn `json:"column" validate:"required,oneof=general acis acis-si-mode hrc-si-mode verification"`
	ObservedAt time.Time            `json:"observedAt" validate:"required"`
}

// VerifyRequest signs the verification column, optionally approving.
type VerifyRequest struct {
	Approve    bool      `json:"approve"`
	ObservedAt time.Time `json:"observedAt" validate:"required"`
}

// SignoffQuery mirrors supported ledger listing filters.
type SignoffQuery struct {
	Obsid       int    `form:"obsid" validate:"gte=0"`
	PendingOnly bool   `form:"pending"`
	Signer      string `form:"signer"`
	Limit       int    `form:"limit" validate:"gte=0,lte=1000"`
}
