// Package bootstrap wires repositories and services from configuration. The
// API server and the admin CLI share it so both act on the same stores.
package bootstrap

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/repository"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/service"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/cache"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/config"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/database"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/export"
)

const (
	lockDirName     = ".locks"
	redisLockPrefix = "ocat:signoff:"
)

// Services is the wired application.
type Services struct {
	DB            *sqlx.DB
	Observations  *repository.ObservationRepository
	Catalog       *service.CatalogService
	Revisions     *service.RevisionService
	Signoffs      *service.SignoffService
	Submissions   *service.SubmissionService
	Exports       *service.ExportService
	Notifications *service.NotificationService
	Metrics       *service.MetricsService
	Tokens        *service.TokenService
	Validate      *validator.Validate

	redis *redis.Client
}

// New opens the database (and Redis when it backs the ledger locks) and
// constructs every service.
func New(cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := repository.LoadRules(cfg.Storage.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load validation rules: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Services{DB: db, Validate: validator.New()}
	if cfg.Metrics.Enabled {
		s.Metrics = service.NewMetricsService()
	}

	signoffOpts := []service.SignoffServiceOption{
		service.WithGraceWindow(cfg.Ledger.GraceWindow),
		service.WithApprovalWait(cfg.Ledger.ApprovalLockWait),
		service.WithSignoffMetrics(s.Metrics),
	}

	var store service.SignoffStore
	switch cfg.Ledger.Backend {
	case config.LedgerBackendFlat:
		store = repository.NewFlatSignoffRepository(cfg.Ledger.FlatPath)
	case config.LedgerBackendPostgres, "":
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		store = repository.NewSignoffRepository(db)
		if cfg.Ledger.MirrorEnabled {
			signoffOpts = append(signoffOpts, service.WithLedgerMirror(repository.NewFlatSignoffRepository(cfg.Ledger.FlatPath)))
		}
	default:
		_ = db.Close()
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	switch cfg.Ledger.LockBackend {
	case config.LockBackendRedis:
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		signoffOpts = append(signoffOpts, service.WithLocker(repository.NewRedisLocker(client, redisLockPrefix, cfg.Ledger.LockTTL, logger)))
	default:
		signoffOpts = append(signoffOpts, service.WithLocker(repository.NewFileLocker(filepath.Join(cfg.Storage.RevisionsDir, lockDirName))))
	}

	s.Observations = repository.NewObservationRepository(db)
	revisionRepo := repository.NewRevisionRepository(cfg.Storage.RevisionsDir)

	s.Notifications = service.NewNotificationService(service.NewLogDispatcher(logger), logger)
	s.Catalog = service.NewCatalogService(s.Observations, logger, service.WithCatalogMetrics(s.Metrics))
	validation := service.NewValidationService(rules, logger,
		service.WithShiftThreshold(cfg.Validation.CoordinateShiftThreshold),
		service.WithNearTermWindow(cfg.Validation.NearTermWindow),
	)
	s.Revisions = service.NewRevisionService(revisionRepo, s.Catalog, logger, service.WithRevisionMetrics(s.Metrics))

	signoffOpts = append(signoffOpts,
		service.WithVerificationWriter(s.Revisions),
		service.WithRevisionIndex(revisionRepo),
		service.WithNotifier(s.Notifications),
	)
	s.Signoffs = service.NewSignoffService(store, repository.NewApprovalRepository(cfg.Storage.ApprovedListPath), logger, signoffOpts...)

	s.Submissions = service.NewSubmissionService(service.SubmissionDeps{
		Catalog:   s.Catalog,
		Validator: validation,
		Writer:    s.Revisions,
		Ledger:    s.Signoffs,
		Shifts:    repository.NewShiftLogRepository(cfg.Storage.ShiftLogPath),
		Notifier:  s.Notifications,
		Metrics:   s.Metrics,
	}, s.Validate, logger)

	s.Exports = service.NewExportService(s.Revisions, s.Signoffs, logger, export.NewCSVExporter(), export.NewPDFExporter())
	s.Tokens = Tokens(cfg)

	return s, nil
}

// Tokens builds the identity token service from the JWT settings alone.
func Tokens(cfg *config.Config) *service.TokenService {
	return service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
	})
}

// Close releases the database and Redis connections.
func (s *Services) Close() error {
	var firstErr error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
