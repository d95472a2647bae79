package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	dealerdomain "github.com/smallbiznis/petroprice/internal/dealer/domain"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded schema. It is safe to call on every
// start; an up-to-date database is a no-op.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the gorm models. It backs the sqlite
// dialect used for local runs and tests.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	err := conn.AutoMigrate(
		&componentdomain.PricingComponent{},
		&windowdomain.PricingWindow{},
		&windowdomain.StationPrice{},
		&reconciliationdomain.Route{},
		&reconciliationdomain.Consignment{},
		&reconciliationdomain.ThreeWayReconciliation{},
		&uppfdomain.UppfClaim{},
		&uppfdomain.RateSyncRun{},
		&journaldomain.JournalRequest{},
		&dealerdomain.DealerSettlement{},
		&dealerdomain.DealerLoan{},
		&dealerdomain.LoanInstallment{},
		&auditdomain.AuditLog{},
	)
	if err != nil {
		return err
	}
	return conn.Exec(oneActiveWindowIndex).Error
}

// oneActiveWindowIndex mirrors the partial index of 000002 for dialects that
// get their schema from the models.
const oneActiveWindowIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_pricing_windows_one_active
	ON pricing_windows (org_id) WHERE status = 'ACTIVE'`
