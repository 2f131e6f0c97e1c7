package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/opscart/k8s-waste-audit/pkg/models"
	"github.com/pkg/errors"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// SQLStore implements Store on PostgreSQL or MySQL.
type SQLStore struct {
	db  *sqlx.DB
	log logr.Logger
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, c Config, log logr.Logger) (*SQLStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.DSN == "" {
		return nil, errors.New("no storage DSN configured")
	}

	dsn, err := normalizeDSN(c)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(c.Driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "can't open database")
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &SQLStore{db: db, log: log}

	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := store.migrate(ctx, c.Driver); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return store, nil
}

// normalizeDSN makes MySQL scan DATETIME columns into time.Time.
func normalizeDSN(c Config) (string, error) {
	if c.Driver != DriverMySQL {
		return c.DSN, nil
	}

	cfg, err := mysql.ParseDSN(c.DSN)
	if err != nil {
		return "", errors.Wrap(err, "can't parse MySQL DSN")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	return cfg.FormatDSN(), nil
}

func (s *SQLStore) migrate(ctx context.Context, driver string) error {
	schema, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return errors.Wrap(err, "failed to read schema")
	}

	for _, stmt := range splitStatements(string(schema)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "can't execute %q", firstLine(stmt))
		}
	}

	s.log.V(1).Info("Applied database schema", "driver", driver)

	return nil
}

// splitStatements splits a schema file on semicolons. The schema files do
// not contain semicolons inside literals.
func splitStatements(schema string) []string {
	var stmts []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// SaveReport stores a report
func (s *SQLStore) SaveReport(ctx context.Context, report *models.Report) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", errors.Wrap(err, "can't encode report")
	}

	id := uuid.New().String()

	query := s.db.Rebind(`
		INSERT INTO waste_reports (
			id, cluster_id, generated_at, total_pods, total_nodes,
			monthly_waste, estimated, findings, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = s.db.ExecContext(ctx, query,
		id, report.ClusterID, report.Timestamp.UTC(), report.TotalPods, report.TotalNodes,
		report.Costs.MonthlyWaste, report.Costs.Estimated, len(report.Findings), string(data),
	)
	if err != nil {
		return "", errors.Wrap(err, "can't insert report")
	}

	return id, nil
}

// GetReport retrieves a report by ID
func (s *SQLStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT report FROM waste_reports WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "can't query report")
	}

	var report models.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, errors.Wrapf(err, "can't decode report %s", id)
	}

	return &report, nil
}

// ListReports lists stored reports, newest first.
func (s *SQLStore) ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	query := s.db.Rebind(`
		SELECT id, cluster_id, generated_at, total_pods, total_nodes,
			monthly_waste, estimated, findings
		FROM waste_reports
		ORDER BY generated_at DESC
		LIMIT ?
	`)

	var summaries []models.ReportSummary
	if err := s.db.SelectContext(ctx, &summaries, query, limit); err != nil {
		return nil, errors.Wrap(err, "can't list reports")
	}

	return summaries, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "failed to ping database")
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
