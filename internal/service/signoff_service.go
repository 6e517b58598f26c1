package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/repository"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

const (
	defaultGraceWindow  = 48 * time.Hour
	defaultApprovalWait = 10 * time.Second

	actionSign    = "sign"
	actionReverse = "reverse"
)

// SignoffStore persists ledger rows with optimistic versioning.
type SignoffStore interface {
	Insert(ctx context.Context, entry *models.SignoffEntry) error
	Get(ctx context.Context, id models.RevisionID) (*models.SignoffEntry, error)
	Update(ctx context.Context, entry *models.SignoffEntry, observed time.Time) error
	List(ctx context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error)
}

// LedgerMirror receives every accepted ledger state for legacy consumers.
type LedgerMirror interface {
	Upsert(ctx context.Context, entry *models.SignoffEntry) error
}

type approvalRegistry interface {
	Append(ctx context.Context, entry models.ApprovalEntry, wait time.Duration) error
	Remove(ctx context.Context, obsid int) (bool, error)
	List(ctx context.Context) ([]models.ApprovalEntry, error)
	LastModified(ctx context.Context) (time.Time, error)
}

// Locker guards the window between accepting a ledger mutation and writing it.
// Acquire never blocks; a held lock is reported as repository.ErrLocked.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type verificationWriter interface {
	WriteVerification(ctx context.Context, obsid int, user string) (*models.RevisionRecord, error)
}

type revisionIndex interface {
	IDs(ctx context.Context) ([]models.RevisionID, error)
	Get(ctx context.Context, id models.RevisionID) (*models.RevisionRecord, error)
}

type notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// VerifyResult reports the effects of a verification sign-off.
type VerifyResult struct {
	Entry    *models.SignoffEntry   `json:"entry"`
	Revision *models.RevisionRecord `json:"revision,omitempty"`
	Approval *models.ApprovalEntry  `json:"approval,omitempty"`
}

// SignoffService runs the sign-off ledger state machine. Every mutation is
// accepted only when the caller's observed version is not older than the
// stored one.
type SignoffService struct {
	store    SignoffStore
	registry approvalRegistry
	mirror   LedgerMirror
	locker   Locker
	writer   verificationWriter
	index    revisionIndex
	notifier notifier
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
	grace    time.Duration
	wait     time.Duration
}

// SignoffServiceOption configures the ledger service.
type SignoffServiceOption func(*SignoffService)

// WithSignoffClock overrides the clock used for sign dates and grace checks.
func WithSignoffClock(now func() time.Time) SignoffServiceOption {
	return func(s *SignoffService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGraceWindow sets how long a signer may reverse their sign-off.
func WithGraceWindow(d time.Duration) SignoffServiceOption {
	return func(s *SignoffService) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithApprovalWait bounds the spin on the approval registry lock.
func WithApprovalWait(d time.Duration) SignoffServiceOption {
	return func(s *SignoffService) {
		if d >= 0 {
			s.wait = d
		}
	}
}

// WithLedgerMirror mirrors accepted states to a legacy list.
func WithLedgerMirror(mirror LedgerMirror) SignoffServiceOption {
	return func(s *SignoffService) {
		s.mirror = mirror
	}
}

// WithLocker installs the advisory lock.
func WithLocker(locker Locker) SignoffServiceOption {
	return func(s *SignoffService) {
		s.locker = locker
	}
}

// WithVerificationWriter sets the writer of zero-diff approval revisions.
func WithVerificationWriter(writer verificationWriter) SignoffServiceOption {
	return func(s *SignoffService) {
		s.writer = writer
	}
}

// WithRevisionIndex sets the artifact index used by Reconcile.
func WithRevisionIndex(index revisionIndex) SignoffServiceOption {
	return func(s *SignoffService) {
		s.index = index
	}
}

// WithNotifier sets the dispatcher for approval-removal notices.
func WithNotifier(n notifier) SignoffServiceOption {
	return func(s *SignoffService) {
		s.notifier = n
	}
}

// WithSignoffMetrics attaches the metrics sink.
func WithSignoffMetrics(metrics *MetricsService) SignoffServiceOption {
	return func(s *SignoffService) {
		s.metrics = metrics
	}
}

// NewSignoffService constructs the ledger service.
func NewSignoffService(store SignoffStore, registry approvalRegistry, logger *zap.Logger, opts ...SignoffServiceOption) *SignoffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SignoffService{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
		grace:    defaultGraceWindow,
		wait:     defaultApprovalWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SeedEntry derives the initial ledger row for a revision. Review columns are
// pending when their category changed and not applicable otherwise. As-is and
// remove submissions are verified by the submitter at creation.
func SeedEntry(record *models.RevisionRecord, now time.Time) *models.SignoffEntry {
	entry := &models.SignoffEntry{
		ID:           record.ID,
		SeqNbr:       record.SeqNbr,
		Submitter:    record.User,
		Mode:         record.Mode,
		Verification: models.Pending(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, col := range models.ReviewColumns {
		*entry.Column(col) = models.NotApplicable()
	}
	switch record.Mode {
	case models.ModeAsIs, models.ModeRemove:
		entry.Verification = models.Signed(record.User, now)
	default:
		for _, col := range models.ReviewColumns {
			if record.Changes.Affects(col) {
				*entry.Column(col) = models.Pending()
			}
		}
		if record.Mode == models.ModeClone {
			entry.General = models.Pending()
		}
	}
	return entry
}

// Seed inserts the ledger entry for a freshly written revision and applies
// the registry effects of as-is and remove submissions.
func (s *SignoffService) Seed(ctx context.Context, record *models.RevisionRecord) (*models.SignoffEntry, error) {
	if record == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "revision record is required")
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	entry := SeedEntry(record, now)
	if err := s.store.Insert(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("ledger entry %s already exists", record.ID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed ledger entry")
	}
	s.mirrorEntry(ctx, entry)

	switch record.Mode {
	case models.ModeAsIs:
		if err := s.appendApproval(ctx, models.ApprovalEntry{
			Obsid:  record.ID.Obsid,
			SeqNbr: record.SeqNbr,
			Signer: record.User,
			Date:   now,
		}); err != nil {
			return entry, err
		}
	case models.ModeRemove:
		if _, err := s.registry.Remove(ctx, record.ID.Obsid); err != nil {
			return entry, s.registryError(err, "failed to remove approval")
		}
	}
	return entry, nil
}

// Get returns one ledger entry.
func (s *SignoffService) Get(ctx context.Context, id models.RevisionID) (*models.SignoffEntry, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("ledger entry %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entry")
	}
	return entry, nil
}

// List returns ledger entries newest first.
func (s *SignoffService) List(ctx context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error) {
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	return entries, nil
}

// Approvals returns the approval registry together with its version.
func (s *SignoffService) Approvals(ctx context.Context) ([]models.ApprovalEntry, time.Time, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return nil, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read approval registry")
	}
	modified, err := s.registry.LastModified(ctx)
	if err != nil {
		return nil, time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat approval registry")
	}
	return entries, modified, nil
}

// Sign moves a pending column to signed(user, now). Signing the verification
// column is a verification without approval.
func (s *SignoffService) Sign(ctx context.Context, id models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error) {
	if column == models.ColumnVerification {
		res, err := s.VerifyAndApprove(ctx, id, user, false, observed)
		if res == nil {
			return nil, err
		}
		return res.Entry, err
	}
	if err := checkColumnRequest(column, user); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, observed, column, actionSign, func(entry *models.SignoffEntry) error {
		cell := entry.Column(column)
		switch cell.State {
		case models.StateNotApplicable:
			return appErrors.Clone(appErrors.ErrNotApplicable, fmt.Sprintf("%s sign-off is not applicable to %s", column, id))
		case models.StateSigned:
			return appErrors.Clone(appErrors.ErrAlreadySigned, fmt.Sprintf("%s already signed by %s", column, cell.Signer))
		}
		*cell = models.Signed(user, s.now().UTC())
		return nil
	})
}

// Reverse returns a signed column to pending. Only the original signer may
// reverse, and only inside the grace window. Reversing the verification of
// an as-is approval also removes the approval registry entry.
func (s *SignoffService) Reverse(ctx context.Context, id models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error) {
	if err := checkColumnRequest(column, user); err != nil {
		return nil, err
	}
	entry, err := s.mutate(ctx, id, observed, column, actionReverse, func(entry *models.SignoffEntry) error {
		cell := entry.Column(column)
		if cell.State != models.StateSigned {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not signed", column))
		}
		if cell.Signer != user {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only %s may reverse this sign-off", cell.Signer))
		}
		// Undated legacy signatures are treated as outside the window.
		if cell.Date == nil || s.now().Sub(*cell.Date) > s.grace {
			return appErrors.Clone(appErrors.ErrGraceExpired, fmt.Sprintf("sign-off is older than %s", s.grace))
		}
		*cell = models.Pending()
		return nil
	})
	if err != nil {
		return entry, err
	}
	if column == models.ColumnVerification && entry.Mode == models.ModeAsIs {
		s.removeApproval(ctx, entry, user)
	}
	return entry, nil
}

// VerifyAndApprove signs the verification column once every applicable review
// column is signed. With approve set it also writes a zero-diff as-is revision,
// seeds its ledger entry and appends to the approval registry.
func (s *SignoffService) VerifyAndApprove(ctx context.Context, id models.RevisionID, user string, approve bool, observed time.Time) (*VerifyResult, error) {
	if strings.TrimSpace(user) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is required")
	}
	entry, err := s.mutate(ctx, id, observed, models.ColumnVerification, actionSign, func(entry *models.SignoffEntry) error {
		if entry.Verification.State == models.StateSigned {
			return appErrors.Clone(appErrors.ErrAlreadySigned, fmt.Sprintf("verification already signed by %s", entry.Verification.Signer))
		}
		if !entry.ReviewsComplete() {
			return appErrors.Clone(appErrors.ErrValidation, "every applicable column must be signed before verification")
		}
		entry.Verification = models.Signed(user, s.now().UTC())
		return nil
	})
	result := &VerifyResult{Entry: entry}
	if err != nil || !approve {
		return result, err
	}
	if s.writer == nil {
		return result, appErrors.Clone(appErrors.ErrInternal, "approval writer is not configured")
	}

	record, err := s.writer.WriteVerification(ctx, id.Obsid, user)
	if err != nil {
		return result, err
	}
	if record == nil {
		s.logger.Info("approval skipped for non-editable observation", zap.Int("obsid", id.Obsid))
		return result, nil
	}
	result.Revision = record
	if _, err := s.Seed(ctx, record); err != nil {
		s.logger.Error("approval revision written without ledger entry",
			zap.String("obsidrev", record.ID.String()), zap.Error(err))
		s.metrics.LedgerSeedFailed()
		return result, err
	}
	result.Approval = &models.ApprovalEntry{
		Obsid:  record.ID.Obsid,
		SeqNbr: record.SeqNbr,
		Signer: user,
		Date:   record.CreatedAt,
	}
	return result, nil
}

// Reconcile seeds ledger entries for revisions that were written without one.
// Registry effects are not replayed.
func (s *SignoffService) Reconcile(ctx context.Context) ([]models.RevisionID, error) {
	if s.index == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "revision index is not configured")
	}
	ids, err := s.index.IDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list revisions")
	}
	seeded := make([]models.RevisionID, 0)
	for _, id := range ids {
		_, err := s.store.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return seeded, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entry")
		}
		record, err := s.index.Get(ctx, id)
		if err != nil {
			s.logger.Warn("revision without structured record skipped", zap.String("obsidrev", id.String()), zap.Error(err))
			continue
		}
		entry := SeedEntry(record, s.now().UTC().Truncate(time.Microsecond))
		if err := s.store.Insert(ctx, entry); err != nil {
			return seeded, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed ledger entry")
		}
		s.mirrorEntry(ctx, entry)
		seeded = append(seeded, id)
		s.logger.Info("ledger entry reconciled", zap.String("obsidrev", id.String()))
	}
	return seeded, nil
}

// mutate loads the entry, rejects stale observers, takes the advisory lock,
// applies fn and writes the result with the repository's version guard.
func (s *SignoffService) mutate(ctx context.Context, id models.RevisionID, observed time.Time, column models.SignoffColumn, action string, fn func(*models.SignoffEntry) error) (*models.SignoffEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if observed.Before(entry.UpdatedAt) {
		s.metrics.SignoffConflict("stale")
		return entry, appErrors.ErrConflict
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return entry, err
	}
	defer release()

	if err := fn(entry); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, entry, observed); err != nil {
		switch {
		case errors.Is(err, repository.ErrStale):
			s.metrics.SignoffConflict("stale")
			fresh, ferr := s.Get(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			return fresh, appErrors.ErrConflict
		case errors.Is(err, repository.ErrLocked):
			s.metrics.SignoffConflict("busy")
			return nil, appErrors.ErrBusy
		case errors.Is(err, repository.ErrNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("ledger entry %s not found", id))
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ledger entry")
		}
	}
	s.mirrorEntry(ctx, entry)
	s.metrics.SignoffTransition(column, action)
	s.logger.Info("ledger column updated",
		zap.String("obsidrev", id.String()), zap.String("column", string(column)), zap.String("action", action))
	return entry, nil
}

func (s *SignoffService) acquire(ctx context.Context, id models.RevisionID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, "signoff:"+id.String())
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			s.metrics.SignoffConflict("busy")
			return nil, appErrors.ErrBusy
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire ledger lock")
	}
	return release, nil
}

func (s *SignoffService) appendApproval(ctx context.Context, entry models.ApprovalEntry) error {
	err := s.registry.Append(ctx, entry, s.wait)
	if err == nil {
		s.logger.Info("approval registered", zap.Int("obsid", entry.Obsid), zap.String("signer", entry.Signer))
		return nil
	}
	if errors.Is(err, repository.ErrDuplicate) {
		s.logger.Warn("obsid already approved", zap.Int("obsid", entry.Obsid))
		return nil
	}
	return s.registryError(err, "failed to append approval")
}

func (s *SignoffService) removeApproval(ctx context.Context, entry *models.SignoffEntry, user string) {
	removed, err := s.registry.Remove(ctx, entry.ID.Obsid)
	if err != nil {
		s.logger.Error("approval removal failed", zap.String("obsidrev", entry.ID.String()), zap.Error(err))
		return
	}
	if !removed || s.notifier == nil {
		return
	}
	n := models.Notification{
		Kind:     models.NotifyRemoval,
		Mode:     models.ModeAsIs,
		Revision: entry.ID,
		User:     user,
		Changes:  models.ChangeSet{Changes: []models.FieldChange{}},
		Summary:  fmt.Sprintf("Approval of obsid %d (%s) was withdrawn by %s.", entry.ID.Obsid, entry.ID, user),
		Routes:   models.RoutingFlags{Removal: true},
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("approval removal notification failed", zap.String("obsidrev", entry.ID.String()), zap.Error(err))
	}
}

func (s *SignoffService) registryError(err error, message string) error {
	if errors.Is(err, repository.ErrLocked) {
		return appErrors.Clone(appErrors.ErrBusy, "approval registry is being updated; retry shortly")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *SignoffService) mirrorEntry(ctx context.Context, entry *models.SignoffEntry) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Upsert(ctx, entry); err != nil {
		s.logger.Error("ledger mirror update failed", zap.String("obsidrev", entry.ID.String()), zap.Error(err))
	}
}

func checkColumnRequest(column models.SignoffColumn, user string) error {
	if !column.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown column %q", column))
	}
	if strings.TrimSpace(user) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "user is required")
	}
	return nil
}
