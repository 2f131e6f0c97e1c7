// Package storage persists reports for the history and show commands.
package storage

import (
	"context"

	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("report not found")

// Store defines the interface for persistent storage
type Store interface {
	// SaveReport stores report and returns its new ID.
	SaveReport(ctx context.Context, report *models.Report) (string, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	// ListReports returns the newest reports first.
	ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error)

	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return errors.Errorf("unknown storage driver %q", c.Driver)
	}
	return nil
}
