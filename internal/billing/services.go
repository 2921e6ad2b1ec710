// Package billing assembles the fee ledger services from their shared dependencies.
package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/feeledger/internal/disputes"
	"github.com/angelmondragon/feeledger/internal/fees"
	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/internal/ledgerquery"
	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/locks"
	"github.com/angelmondragon/feeledger/pkg/logger"
	"github.com/angelmondragon/feeledger/pkg/metrics"
	"github.com/angelmondragon/feeledger/pkg/redis"
)

// ServicesParams groups the infrastructure the billing services share.
type ServicesParams struct {
	Config    config.BillingConfig
	Logger    *logger.Logger
	DB        *db.Client
	Redis     *redis.Client
	Publisher events.Publisher
	Metrics   *metrics.BillingMetrics
	Clock     func() time.Time
}

// Services is the wired billing domain.
type Services struct {
	Locker   locks.SupplierLocker
	Fees     fees.Service
	Ledger   ledger.Service
	Invoices invoices.Service
	Disputes disputes.Service
	Query    *ledgerquery.Engine
}

// NewServices builds every billing service on top of a single database client and supplier locker.
func NewServices(params ServicesParams) (*Services, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	locker, err := newLocker(params)
	if err != nil {
		return nil, err
	}

	conn := params.DB.DB()
	ledgerRepo := ledger.NewRepository(conn)
	invoiceRepo := invoices.NewRepository(conn)

	feeSvc, err := fees.NewService(fees.ServiceParams{
		Repo:        fees.NewPolicyRepository(conn),
		DefaultRate: params.Config.DefaultFeeRate(),
		Clock:       clock,
	})
	if err != nil {
		return nil, fmt.Errorf("fees service: %w", err)
	}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:     ledgerRepo,
		DB:       params.DB,
		Rates:    feeSvc,
		Locker:   locker,
		Observer: params.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:        invoiceRepo,
		LedgerRepo:  ledgerRepo,
		Ledger:      ledgerSvc,
		DB:          params.DB,
		Locker:      locker,
		Publisher:   publisher,
		Observer:    params.Metrics,
		Logger:      params.Logger,
		DueDays:     params.Config.InvoiceDueDays,
		Clock:       clock,
		PDFRenderer: invoices.NewMarotoRenderer(),
	})
	if err != nil {
		return nil, fmt.Errorf("invoice service: %w", err)
	}

	disputeSvc, err := disputes.NewService(disputes.ServiceParams{
		Repo:       disputes.NewRepository(conn),
		LedgerRepo: ledgerRepo,
		Ledger:     ledgerSvc,
		DB:         params.DB,
		Locker:     locker,
		Clock:      clock,
	})
	if err != nil {
		return nil, fmt.Errorf("dispute service: %w", err)
	}

	engine, err := ledgerquery.NewEngine(ledgerquery.EngineParams{
		LedgerRepo:    ledgerRepo,
		InvoiceRepo:   invoiceRepo,
		DB:            params.DB,
		DueSoonWindow: params.Config.DueSoonWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger query engine: %w", err)
	}

	return &Services{
		Locker:   locker,
		Fees:     feeSvc,
		Ledger:   ledgerSvc,
		Invoices: invoiceSvc,
		Disputes: disputeSvc,
		Query:    engine,
	}, nil
}

func newLocker(params ServicesParams) (locks.SupplierLocker, error) {
	opts := locks.Options{
		Timeout: params.Config.LockTimeout,
		TTL:     params.Config.LockTTL,
	}
	if params.Metrics != nil {
		opts.Observer = params.Metrics
	}
	if params.Config.UsesLocalLocks() {
		return locks.NewLocalLocker(opts), nil
	}
	if params.Redis == nil {
		return nil, fmt.Errorf("redis client is required for the %q lock backend", params.Config.LockBackend)
	}
	return locks.NewRedisLocker(params.Redis, opts)
}
