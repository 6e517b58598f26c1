package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// Dispatcher delivers notifications. Delivery guarantees are the
// dispatcher's concern.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// DispatcherFunc allows using plain functions.
type DispatcherFunc func(ctx context.Context, n models.Notification) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// LogDispatcher records notifications in the service log.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher constructs the default dispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch implements Dispatcher.
func (d *LogDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	d.logger.Info("notification",
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("obsidrev", n.Revision.String()),
		zap.String("mode", string(n.Mode)),
		zap.String("user", n.User),
		zap.Ints("related", n.RelatedObsids),
		zap.Any("routes", n.Routes),
		zap.String("summary", n.Summary),
	)
	return nil
}

// NotificationService stamps notifications and hands them to the dispatcher.
type NotificationService struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService constructs the service. A nil dispatcher logs.
func NewNotificationService(dispatcher Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = NewLogDispatcher(logger)
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Notify assigns an id and timestamp when missing and dispatches synchronously.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		return fmt.Errorf("dispatch notification %s: %w", n.ID, err)
	}
	return nil
}

// RevisionNotice builds the payload sent after a revision is written.
func RevisionNotice(record *models.RevisionRecord, snap *models.ObservationSnapshot, report *models.ValidationReport) models.Notification {
	n := models.Notification{
		Kind:     models.NotifyRevision,
		Mode:     record.Mode,
		Revision: record.ID,
		User:     record.User,
		Changes:  record.Changes,
		Summary:  ChangeSummary(record),
	}
	if snap != nil {
		n.RelatedObsids = append([]int(nil), snap.RelatedObsids...)
	}
	if report != nil {
		n.Routes = report.Routes()
	}
	n.Routes.Removal = record.Mode == models.ModeRemove
	return n
}

// ChangeSummary is the plain-text change list used in notices.
func ChangeSummary(record *models.RevisionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s) by %s\n", record.Mode.Marker(), record.ID, record.TargetName, record.User)
	if record.Changes.ACISNullified {
		fmt.Fprintf(&b, nullifiedMarker+"\n", models.FamilyACIS)
	}
	if record.Changes.HRCNullified {
		fmt.Fprintf(&b, nullifiedMarker+"\n", models.FamilyHRC)
	}
	for _, ch := range record.Changes.Changes {
		fmt.Fprintf(&b, "%s: %s => %s\n", ch.DisplayName(), dash(ch.Old), dash(ch.New))
	}
	for _, w := range record.Warnings {
		fmt.Fprintf(&b, "WARNING: %s\n", w)
	}
	return strings.TrimRight(b.String(), "\n")
}
