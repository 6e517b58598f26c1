package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SubmissionMode captures what a revision asks for.
type SubmissionMode string

const (
	ModeNormal SubmissionMode = "normal"
	ModeAsIs   SubmissionMode = "asis"
	ModeRemove SubmissionMode = "remove"
	ModeClone  SubmissionMode = "clone"
)

// Valid reports whether m is a known submission mode.
func (m SubmissionMode) Valid() bool {
	switch m {
	case ModeNormal, ModeAsIs, ModeRemove, ModeClone:
		return true
	default:
		return false
	}
}

// Marker is the header line written into the artifact for the mode.
func (m SubmissionMode) Marker() string {
	switch m {
	case ModeAsIs:
		return "VERIFIED OK AS IS"
	case ModeRemove:
		return "VERIFIED REMOVED"
	case ModeClone:
		return "SPLIT/CLONE REQUESTED"
	default:
		return "NORMAL UPDATE"
	}
}

// RevisionWidth is the zero padded width of the revision suffix.
const RevisionWidth = 3

// RevisionID identifies one submitted change package as "<obsid>.<rev>".
type RevisionID struct {
	Obsid int `json:"obsid"`
	Rev   int `json:"rev"`
}

// String formats the id, e.g. 12345.007.
func (id RevisionID) String() string {
	return fmt.Sprintf("%d.%0*d", id.Obsid, RevisionWidth, id.Rev)
}

// MarshalText implements encoding.TextMarshaler.
func (id RevisionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *RevisionID) UnmarshalText(b []byte) error {
	parsed, err := ParseRevisionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRevisionID parses "<obsid>.<rev>".
func ParseRevisionID(raw string) (RevisionID, error) {
	obsidPart, revPart, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok {
		return RevisionID{}, fmt.Errorf("revision id %q: missing revision suffix", raw)
	}
	obsid, err := strconv.Atoi(obsidPart)
	if err != nil || obsid <= 0 {
		return RevisionID{}, fmt.Errorf("revision id %q: invalid obsid", raw)
	}
	rev, err := strconv.Atoi(revPart)
	if err != nil || rev <= 0 {
		return RevisionID{}, fmt.Errorf("revision id %q: invalid revision", raw)
	}
	return RevisionID{Obsid: obsid, Rev: rev}, nil
}

// ChangeCategory selects the summary block a changed field is reported in.
type ChangeCategory string

const (
	CategoryGeneral    ChangeCategory = "general"
	CategoryACIS       ChangeCategory = "acis"
	CategoryACISWindow ChangeCategory = "acis-window"
)

// FieldChange is one changed parameter. Rank is -1 for scalars.
type FieldChange struct {
	Name     string          `json:"name"`
	Rank     int             `json:"rank"`
	Old      string          `json:"old"`
	New      string          `json:"new"`
	Category ChangeCategory  `json:"category"`
	Columns  []SignoffColumn `json:"columns"`
}

// DisplayName includes the rank suffix for ranked fields.
func (c FieldChange) DisplayName() string {
	if c.Rank < 0 {
		return strings.ToUpper(c.Name)
	}
	return fmt.Sprintf("%s%d", strings.ToUpper(c.Name), c.Rank+1)
}

// ChangeSet is the diff between the original and requested values.
type ChangeSet struct {
	Changes       []FieldChange `json:"changes"`
	ACISNullified bool          `json:"acisNullified"`
	HRCNullified  bool          `json:"hrcNullified"`
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.Changes) == 0
}

// InCategory returns the changes reported in one summary block.
func (c ChangeSet) InCategory(cat ChangeCategory) []FieldChange {
	out := make([]FieldChange, 0)
	for _, ch := range c.Changes {
		if ch.Category == cat {
			out = append(out, ch)
		}
	}
	return out
}

// Affects reports whether any change requires sign-off in column.
func (c ChangeSet) Affects(column SignoffColumn) bool {
	for _, ch := range c.Changes {
		for _, col := range ch.Columns {
			if col == column {
				return true
			}
		}
	}
	return false
}

// ParameterListing is one row of the full original/requested audit listing.
// Rank is -1 for scalars.
type ParameterListing struct {
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
	Original  string `json:"original"`
	Requested string `json:"requested"`
}

// DisplayName includes the rank suffix for ranked rows.
func (l ParameterListing) DisplayName() string {
	if l.Rank < 0 {
		return l.Name
	}
	return fmt.Sprintf("%s%d", l.Name, l.Rank+1)
}

// RevisionRecord is the immutable audit artifact for one submission.
type RevisionRecord struct {
	ID            RevisionID         `json:"id"`
	SeqNbr        string             `json:"seqNbr"`
	TargetName    string             `json:"targetName"`
	User          string             `json:"user"`
	Mode          SubmissionMode     `json:"mode"`
	CreatedAt     time.Time          `json:"createdAt"`
	PriorComments string             `json:"priorComments,omitempty"`
	NewComments   string             `json:"newComments,omitempty"`
	PriorRemarks  string             `json:"priorRemarks,omitempty"`
	NewRemarks    string             `json:"newRemarks,omitempty"`
	Changes       ChangeSet          `json:"changes"`
	Warnings      []string           `json:"warnings,omitempty"`
	Listing       []ParameterListing `json:"listing"`
}

// FormatValue renders a raw parameter value for artifacts and listings.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "Y"
		}
		return "N"
	default:
		return fmt.Sprint(t)
	}
}

// ParameterStatus is the three-way comparison of one listed parameter against
// the live source.
type ParameterStatus struct {
	Name      string `json:"name"`
	Rank      int    `json:"rank"`
	Original  string `json:"original"`
	Requested string `json:"requested"`
	Current   string `json:"current"`
	Indicator int    `json:"indicator"`
}

// RevisionStatus pairs a stored revision with its live comparison.
type RevisionStatus struct {
	Record     *RevisionRecord   `json:"record"`
	Parameters []ParameterStatus `json:"parameters"`
	CheckedAt  time.Time         `json:"checkedAt"`
}
