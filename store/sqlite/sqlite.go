/*
Package sqlite provides the SQLite-backed implementation of every storage
interface in the workflow engine.

PURPOSE:
  One store implements:
    catalog.Source        cascade option reads
    odf.OccupancyStore    port occupancy + atomic reservation
    viability.Store       viability persistence + atomic approval commit
    order.Store           orders, attachments, guarded circuit creation

  plus the catalog write methods used by seeding and scenarios.

CONFLICT ENFORCEMENT:
  The two commit-time invariants live in the schema, not in application
  checks that can race:

    UNIQUE(odf_code, port) on port_reservations
      -> a port can never hold two occupants; the losing approval gets a
         constraint violation translated to *odf.PortConflictError

    guarded UPDATE ... WHERE circuit_created = 0
      -> a circuit is created at most once per order

ATOMIC APPROVAL:
  CommitApproval runs the classification update, the order insert, and the
  reservation inserts in one database transaction. A failure on any
  statement (including a port conflict) rolls back all of them.

DECIMALS:
  Money and distance are stored as TEXT and parsed with shopspring/decimal.
  NULL means "unpriced" and is never collapsed to zero.

WAL MODE:
  SQLite is opened with WAL and foreign keys on. Schema is auto-migrated on
  New(). Use ":memory:" for tests.

SEE ALSO:
  - viability/machine.go: the only caller of CommitApproval
  - odf/allocation.go: availability math over OccupiedPorts
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A second pooled connection to ":memory:" would open a separate empty
	// database. SQLite allows one writer anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		contact_type TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_company ON contacts(company_id, contact_type);

	CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		area_id TEXT NOT NULL,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_locations_area ON locations(area_id);

	CREATE TABLE IF NOT EXISTS modules (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		name TEXT NOT NULL,
		coordinates TEXT,
		tenant_name TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_modules_location ON modules(location_id);

	CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		name TEXT NOT NULL,
		distance_km TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_routes_location ON routes(location_id);

	CREATE TABLE IF NOT EXISTS connection_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS rates (
		route_id TEXT NOT NULL,
		connection_type_id TEXT NOT NULL,
		mrc TEXT NOT NULL,
		nrc TEXT NOT NULL,
		PRIMARY KEY (route_id, connection_type_id)
	);

	-- ODFs and occupancy
	CREATE TABLE IF NOT EXISTS odfs (
		code TEXT PRIMARY KEY,
		total_ports INTEGER NOT NULL
	);

	-- CRITICAL: one occupant per port, enforced at commit time.
	CREATE TABLE IF NOT EXISTS port_reservations (
		odf_code TEXT NOT NULL,
		port INTEGER NOT NULL,
		consumer_ref TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (odf_code, port)
	);
	CREATE INDEX IF NOT EXISTS idx_reservations_consumer ON port_reservations(consumer_ref);

	-- Viabilities (never deleted; terminal classifications instead)
	CREATE TABLE IF NOT EXISTS viabilities (
		id TEXT PRIMARY KEY,
		document_number TEXT NOT NULL UNIQUE,
		classification TEXT NOT NULL,
		special INTEGER NOT NULL DEFAULT 0,
		company_id TEXT NOT NULL,
		a_area_id TEXT NOT NULL,
		a_location_id TEXT NOT NULL,
		a_module_id TEXT NOT NULL,
		a_coordinates TEXT,
		a_tenant_name TEXT,
		z_area_id TEXT NOT NULL,
		z_location_id TEXT NOT NULL,
		z_module_id TEXT NOT NULL,
		z_coordinates TEXT,
		z_tenant_name TEXT,
		route_id TEXT NOT NULL,
		connection_type_id TEXT NOT NULL,
		mrc TEXT,
		nrc TEXT,
		reason TEXT,
		created_at TEXT NOT NULL,
		approved_at TEXT,
		rejected_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_viabilities_classification ON viabilities(classification);
	CREATE INDEX IF NOT EXISTS idx_viabilities_company ON viabilities(company_id);

	-- Orders (exactly one per approved viability)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		document_number TEXT NOT NULL UNIQUE,
		viability_id TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		route_id TEXT NOT NULL,
		connection_type_id TEXT NOT NULL,
		distance_km TEXT NOT NULL,
		mrc TEXT NOT NULL,
		nrc TEXT NOT NULL,
		primary_odf TEXT,
		primary_port INTEGER,
		secondary_odf TEXT,
		secondary_port INTEGER,
		uses_redundant INTEGER NOT NULL DEFAULT 0,
		commercial_contact_id TEXT,
		technical_contact_id TEXT,
		location_detail TEXT,
		interconnection_detail TEXT,
		service_detail TEXT,
		circuit_created INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS order_attachments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		filename TEXT NOT NULL,
		uploaded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attachments_order ON order_attachments(order_id);

	-- Circuits (at most one per order)
	CREATE TABLE IF NOT EXISTS circuits (
		id TEXT PRIMARY KEY,
		document_number TEXT NOT NULL UNIQUE,
		order_id TEXT NOT NULL UNIQUE,
		cid_a TEXT NOT NULL,
		cid_z TEXT NOT NULL,
		primary_odf TEXT,
		primary_port INTEGER,
		secondary_odf TEXT,
		secondary_port INTEGER,
		ftp_reference TEXT,
		distance_km TEXT NOT NULL,
		mrc TEXT NOT NULL,
		nrc TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Business document-number sequences
	CREATE TABLE IF NOT EXISTS doc_sequences (
		kind TEXT NOT NULL,
		year INTEGER NOT NULL,
		next INTEGER NOT NULL,
		PRIMARY KEY (kind, year)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Reset wipes every table. Used by scenario loads; development only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tables := []string{
		"companies", "contacts", "areas", "locations", "modules", "routes",
		"connection_types", "rates", "odfs", "port_reservations",
		"viabilities", "orders", "order_attachments", "circuits", "doc_sequences",
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("reset %s: %w", t, err)
		}
	}
	return nil
}

// =============================================================================
// DOCUMENT NUMBERS
// =============================================================================

// NextDocumentNumber issues the next business document number of a kind,
// e.g. "VB-2026-000042". Sequences are per kind and year.
func (s *Store) NextDocumentNumber(ctx context.Context, kind workflow.DocumentKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	year := time.Now().UTC().Year()
	var next int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO doc_sequences (kind, year, next) VALUES (?, ?, 1)
		ON CONFLICT(kind, year) DO UPDATE SET next = next + 1
		RETURNING next`,
		string(kind), year).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("next document number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%06d", kind, year, next), nil
}

// =============================================================================
// CATALOG: companies and contacts
// =============================================================================

func (s *Store) SaveCompany(ctx context.Context, c catalog.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO companies (id, name, active) VALUES (?, ?, ?)`,
		c.ID, c.Name, boolInt(c.Active))
	return err
}

func (s *Store) GetCompany(ctx context.Context, id string) (*catalog.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c catalog.Company
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, active FROM companies WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Active = active != 0
	return &c, nil
}

func (s *Store) ListCompanies(ctx context.Context) ([]catalog.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active FROM companies WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Company
	for rows.Next() {
		var c catalog.Company
		var active int
		if err := rows.Scan(&c.ID, &c.Name, &active); err != nil {
			return nil, err
		}
		c.Active = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SaveContact(ctx context.Context, c catalog.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO contacts (id, company_id, name, email, contact_type, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Name, c.Email, c.Type, boolInt(c.Active))
	return err
}

func (s *Store) GetContact(ctx context.Context, id string) (*catalog.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, email, contact_type, active FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListContacts returns a company's contacts, optionally filtered by type.
// Populates the approval workflow's contact selectors.
func (s *Store) ListContacts(ctx context.Context, companyID string, contactType workflow.ContactType, activeOnly bool) ([]catalog.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, company_id, name, email, contact_type, active FROM contacts WHERE company_id = ?`
	args := []any{companyID}
	if contactType != "" {
		query += ` AND contact_type = ?`
		args = append(args, string(contactType))
	}
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanContact(row rowScanner) (*catalog.Contact, error) {
	var c catalog.Contact
	var active int
	var email sql.NullString
	if err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &email, &c.Type, &active); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Active = active != 0
	return &c, nil
}

// =============================================================================
// CATALOG: cascade source
// =============================================================================

func (s *Store) SaveArea(ctx context.Context, a catalog.DevelopmentArea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO areas (id, name, active) VALUES (?, ?, ?)`,
		a.ID, a.Name, boolInt(a.Active))
	return err
}

func (s *Store) ListAreas(ctx context.Context) ([]catalog.DevelopmentArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active FROM areas WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.DevelopmentArea
	for rows.Next() {
		var a catalog.DevelopmentArea
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &active); err != nil {
			return nil, err
		}
		a.Active = active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SaveLocation(ctx context.Context, l catalog.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO locations (id, area_id, name, active) VALUES (?, ?, ?, ?)`,
		l.ID, l.AreaID, l.Name, boolInt(l.Active))
	return err
}

func (s *Store) ListLocationsByArea(ctx context.Context, areaID string) ([]catalog.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, area_id, name, active FROM locations WHERE area_id = ? AND active = 1 ORDER BY name`,
		areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Location
	for rows.Next() {
		var l catalog.Location
		var active int
		if err := rows.Scan(&l.ID, &l.AreaID, &l.Name, &active); err != nil {
			return nil, err
		}
		l.Active = active != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) SaveModule(ctx context.Context, m catalog.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO modules (id, location_id, name, coordinates, tenant_name, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.LocationID, m.Name, m.Coordinates, m.TenantName, boolInt(m.Active))
	return err
}

func (s *Store) ListModulesByLocation(ctx context.Context, locationID string) ([]catalog.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location_id, name, coordinates, tenant_name, active
		FROM modules WHERE location_id = ? AND active = 1 ORDER BY name`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) GetModule(ctx context.Context, moduleID string) (*catalog.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, location_id, name, coordinates, tenant_name, active
		FROM modules WHERE id = ?`, moduleID)
	m, err := scanModule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModule(row rowScanner) (*catalog.Module, error) {
	var m catalog.Module
	var active int
	var coords, tenant sql.NullString
	if err := row.Scan(&m.ID, &m.LocationID, &m.Name, &coords, &tenant, &active); err != nil {
		return nil, err
	}
	m.Coordinates = coords.String
	m.TenantName = tenant.String
	m.Active = active != 0
	return &m, nil
}

func (s *Store) SaveRoute(ctx context.Context, r catalog.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO routes (id, location_id, name, distance_km) VALUES (?, ?, ?, ?)`,
		r.ID, r.LocationID, r.Name, r.DistanceKM.String())
	return err
}

func (s *Store) ListRoutesByLocation(ctx context.Context, locationID string) ([]catalog.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location_id, name, distance_km FROM routes WHERE location_id = ? ORDER BY name`,
		locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Route
	for rows.Next() {
		var r catalog.Route
		var dist string
		if err := rows.Scan(&r.ID, &r.LocationID, &r.Name, &dist); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(dist)
		if err != nil {
			return nil, fmt.Errorf("route %s distance: %w", r.ID, err)
		}
		r.DistanceKM = d
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveConnectionType(ctx context.Context, ct catalog.ConnectionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO connection_types (id, name, active) VALUES (?, ?, ?)`,
		ct.ID, ct.Name, boolInt(ct.Active))
	return err
}

func (s *Store) ListConnectionTypes(ctx context.Context) ([]catalog.ConnectionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active FROM connection_types WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.ConnectionType
	for rows.Next() {
		var ct catalog.ConnectionType
		var active int
		if err := rows.Scan(&ct.ID, &ct.Name, &active); err != nil {
			return nil, err
		}
		ct.Active = active != 0
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *Store) SaveRate(ctx context.Context, r catalog.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rates (route_id, connection_type_id, mrc, nrc)
		VALUES (?, ?, ?, ?)`,
		r.RouteID, r.ConnectionTypeID, r.MRC.String(), r.NRC.String())
	return err
}

// GetRate returns nil when no rate is configured for the pair. The resolver
// turns that into its distinct "no rate" outcome.
func (s *Store) GetRate(ctx context.Context, routeID, connectionTypeID string) (*catalog.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var mrc, nrc string
	err := s.db.QueryRowContext(ctx,
		`SELECT mrc, nrc FROM rates WHERE route_id = ? AND connection_type_id = ?`,
		routeID, connectionTypeID).Scan(&mrc, &nrc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rate := catalog.Rate{RouteID: routeID, ConnectionTypeID: connectionTypeID}
	if rate.MRC, err = decimal.NewFromString(mrc); err != nil {
		return nil, fmt.Errorf("rate mrc: %w", err)
	}
	if rate.NRC, err = decimal.NewFromString(nrc); err != nil {
		return nil, fmt.Errorf("rate nrc: %w", err)
	}
	return &rate, nil
}

// =============================================================================
// ODF OCCUPANCY
// =============================================================================

func (s *Store) SaveODF(ctx context.Context, frame odf.ODF) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO odfs (code, total_ports) VALUES (?, ?)`,
		frame.Code, frame.TotalPorts)
	return err
}

func (s *Store) GetODF(ctx context.Context, code string) (*odf.ODF, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var frame odf.ODF
	err := s.db.QueryRowContext(ctx,
		`SELECT code, total_ports FROM odfs WHERE code = ?`, code).
		Scan(&frame.Code, &frame.TotalPorts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

func (s *Store) ListODFs(ctx context.Context) ([]odf.ODF, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT code, total_ports FROM odfs ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []odf.ODF
	for rows.Next() {
		var frame odf.ODF
		if err := rows.Scan(&frame.Code, &frame.TotalPorts); err != nil {
			return nil, err
		}
		out = append(out, frame)
	}
	return out, rows.Err()
}

func (s *Store) OccupiedPorts(ctx context.Context, code string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT port FROM port_reservations WHERE odf_code = ? ORDER BY port`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reserve commits reservations atomically. The UNIQUE(odf_code, port) index
// is the authoritative conflict check.
func (s *Store) Reserve(ctx context.Context, reservations ...odf.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range reservations {
		if err := insertReservation(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Release(ctx context.Context, consumerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM port_reservations WHERE consumer_ref = ?`, consumerRef)
	return err
}

func insertReservation(ctx context.Context, tx *sql.Tx, r odf.Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO port_reservations (odf_code, port, consumer_ref, created_at)
		VALUES (?, ?, ?, ?)`,
		r.ODFCode, r.Port, r.ConsumerRef, time.Now().UTC().Format(time.RFC3339))
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		conflict := &odf.PortConflictError{ODFCode: r.ODFCode, Port: r.Port}
		// Best effort: name the current occupant for the operator.
		var holder string
		if qerr := tx.QueryRowContext(ctx,
			`SELECT consumer_ref FROM port_reservations WHERE odf_code = ? AND port = ?`,
			r.ODFCode, r.Port).Scan(&holder); qerr == nil {
			conflict.HeldBy = holder
		}
		return conflict
	}
	return err
}

// =============================================================================
// VIABILITIES
// =============================================================================

func (s *Store) CreateViability(ctx context.Context, r *viability.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO viabilities (
			id, document_number, classification, special, company_id,
			a_area_id, a_location_id, a_module_id, a_coordinates, a_tenant_name,
			z_area_id, z_location_id, z_module_id, z_coordinates, z_tenant_name,
			route_id, connection_type_id, mrc, nrc, reason,
			created_at, approved_at, rejected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		viabilityArgs(r)...)
	return err
}

func (s *Store) UpdateViability(ctx context.Context, r *viability.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE viabilities SET
			classification = ?, mrc = ?, nrc = ?, reason = ?,
			approved_at = ?, rejected_at = ?
		WHERE id = ?`,
		string(r.Classification),
		decimalPtr(r.Selection.MRC), decimalPtr(r.Selection.NRC),
		nullStr(r.Reason),
		nullTime(r.ApprovedAt), nullTime(r.RejectedAt),
		string(r.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &workflow.NotFoundError{Kind: "viability", ID: string(r.ID)}
	}
	return nil
}

func viabilityArgs(r *viability.Request) []any {
	return []any{
		string(r.ID), r.DocumentNumber, string(r.Classification), boolInt(r.Special), r.CompanyID,
		r.Selection.A.AreaID, r.Selection.A.LocationID, r.Selection.A.ModuleID,
		r.Selection.A.Coordinates, r.Selection.A.TenantName,
		r.Selection.Z.AreaID, r.Selection.Z.LocationID, r.Selection.Z.ModuleID,
		r.Selection.Z.Coordinates, r.Selection.Z.TenantName,
		r.Selection.RouteID, r.Selection.ConnectionTypeID,
		decimalPtr(r.Selection.MRC), decimalPtr(r.Selection.NRC),
		nullStr(r.Reason),
		r.CreatedAt.Format(time.RFC3339),
		nullTime(r.ApprovedAt), nullTime(r.RejectedAt),
	}
}

const selectViabilitySQL = `
	SELECT id, document_number, classification, special, company_id,
		a_area_id, a_location_id, a_module_id, a_coordinates, a_tenant_name,
		z_area_id, z_location_id, z_module_id, z_coordinates, z_tenant_name,
		route_id, connection_type_id, mrc, nrc, reason,
		created_at, approved_at, rejected_at
	FROM viabilities`

func (s *Store) GetViability(ctx context.Context, id workflow.ViabilityID) (*viability.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, selectViabilitySQL+` WHERE id = ?`, string(id))
	r, err := scanViability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) ListViabilities(ctx context.Context, classification *workflow.Classification) ([]viability.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectViabilitySQL
	var args []any
	if classification != nil {
		query += ` WHERE classification = ?`
		args = append(args, string(*classification))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []viability.Request
	for rows.Next() {
		r, err := scanViability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanViability(row rowScanner) (*viability.Request, error) {
	var r viability.Request
	var id, classification string
	var special int
	var aCoords, aTenant, zCoords, zTenant sql.NullString
	var mrc, nrc, reason sql.NullString
	var createdAt string
	var approvedAt, rejectedAt sql.NullString

	err := row.Scan(
		&id, &r.DocumentNumber, &classification, &special, &r.CompanyID,
		&r.Selection.A.AreaID, &r.Selection.A.LocationID, &r.Selection.A.ModuleID, &aCoords, &aTenant,
		&r.Selection.Z.AreaID, &r.Selection.Z.LocationID, &r.Selection.Z.ModuleID, &zCoords, &zTenant,
		&r.Selection.RouteID, &r.Selection.ConnectionTypeID, &mrc, &nrc, &reason,
		&createdAt, &approvedAt, &rejectedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ID = workflow.ViabilityID(id)
	r.Classification = workflow.Classification(classification)
	r.Special = special != 0
	r.Selection.A.Coordinates = aCoords.String
	r.Selection.A.TenantName = aTenant.String
	r.Selection.Z.Coordinates = zCoords.String
	r.Selection.Z.TenantName = zTenant.String

	if r.Selection.MRC, err = scanDecimalPtr(mrc); err != nil {
		return nil, fmt.Errorf("viability mrc: %w", err)
	}
	if r.Selection.NRC, err = scanDecimalPtr(nrc); err != nil {
		return nil, fmt.Errorf("viability nrc: %w", err)
	}
	if reason.Valid {
		v := reason.String
		r.Reason = &v
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("viability created_at: %w", err)
	}
	if r.ApprovedAt, err = scanTimePtr(approvedAt); err != nil {
		return nil, fmt.Errorf("viability approved_at: %w", err)
	}
	if r.RejectedAt, err = scanTimePtr(rejectedAt); err != nil {
		return nil, fmt.Errorf("viability rejected_at: %w", err)
	}
	return &r, nil
}

// CommitApproval applies an approval atomically: the classification update,
// the order insert, and every port reservation either all commit or none do.
func (s *Store) CommitApproval(ctx context.Context, r *viability.Request, o *order.ServiceOrder, reservations []odf.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Guarded transition: a concurrent approval or rejection loses here.
	res, err := tx.ExecContext(ctx, `
		UPDATE viabilities SET classification = ?, approved_at = ?
		WHERE id = ? AND classification IN (?, ?)`,
		string(workflow.Approved), nullTime(r.ApprovedAt), string(r.ID),
		string(workflow.RequestForQuote), string(workflow.PendingApproval))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("viability %s is no longer approvable: %w", r.ID, workflow.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, insertOrderSQL, orderArgs(o)...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, resv := range reservations {
		if err := insertReservation(ctx, tx, resv); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// ORDERS
// =============================================================================

const insertOrderSQL = `
	INSERT INTO orders (
		id, document_number, viability_id, company_id,
		route_id, connection_type_id, distance_km, mrc, nrc,
		primary_odf, primary_port, secondary_odf, secondary_port, uses_redundant,
		commercial_contact_id, technical_contact_id,
		location_detail, interconnection_detail, service_detail,
		circuit_created, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func orderArgs(o *order.ServiceOrder) []any {
	primaryODF, primaryPort := assignmentCols(o.Primary)
	secondaryODF, secondaryPort := assignmentCols(o.Secondary)
	return []any{
		string(o.ID), o.DocumentNumber, string(o.ViabilityID), o.CompanyID,
		o.RouteID, o.ConnectionTypeID, o.DistanceKM.String(), o.MRC.String(), o.NRC.String(),
		primaryODF, primaryPort, secondaryODF, secondaryPort, boolInt(o.UsesRedundantPoint),
		o.CommercialContactID, o.TechnicalContactID,
		o.LocationDetail, o.InterconnectionDetail, o.ServiceDetail,
		boolInt(o.CircuitCreated),
		o.CreatedAt.Format(time.RFC3339), o.UpdatedAt.Format(time.RFC3339),
	}
}

const selectOrderSQL = `
	SELECT id, document_number, viability_id, company_id,
		route_id, connection_type_id, distance_km, mrc, nrc,
		primary_odf, primary_port, secondary_odf, secondary_port, uses_redundant,
		commercial_contact_id, technical_contact_id,
		location_detail, interconnection_detail, service_detail,
		circuit_created, created_at, updated_at
	FROM orders`

func (s *Store) GetOrder(ctx context.Context, id workflow.OrderID) (*order.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, selectOrderSQL+` WHERE id = ?`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// GetOrderByViability returns the order materialized from a viability, nil
// when it was never approved.
func (s *Store) GetOrderByViability(ctx context.Context, id workflow.ViabilityID) (*order.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, selectOrderSQL+` WHERE viability_id = ?`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context) ([]order.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, selectOrderSQL+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOrder persists the editable non-port fields. The viability link and
// the circuit_created flag are deliberately absent from the statement, and
// so are the port columns: those only ever change through UpdateOrderPorts,
// atomically with their reservations.
func (s *Store) UpdateOrder(ctx context.Context, o *order.ServiceOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			commercial_contact_id = ?, technical_contact_id = ?,
			location_detail = ?, interconnection_detail = ?, service_detail = ?,
			updated_at = ?
		WHERE id = ?`,
		o.CommercialContactID, o.TechnicalContactID,
		o.LocationDetail, o.InterconnectionDetail, o.ServiceDetail,
		o.UpdatedAt.Format(time.RFC3339),
		string(o.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &workflow.NotFoundError{Kind: "order", ID: string(o.ID)}
	}
	return nil
}

// UpdateOrderPorts swaps the order's port assignments and their occupancy in
// one transaction: release everything held under the order's consumer ref,
// insert the new reservations, update the row. The UNIQUE(odf_code, port)
// index fails the whole change when another consumer holds a port.
func (s *Store) UpdateOrderPorts(ctx context.Context, o *order.ServiceOrder, reservations []odf.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM port_reservations WHERE consumer_ref = ?`, o.ConsumerRef()); err != nil {
		return err
	}
	for _, r := range reservations {
		if err := insertReservation(ctx, tx, r); err != nil {
			return err
		}
	}

	primaryODF, primaryPort := assignmentCols(o.Primary)
	secondaryODF, secondaryPort := assignmentCols(o.Secondary)
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			primary_odf = ?, primary_port = ?, secondary_odf = ?, secondary_port = ?,
			uses_redundant = ?,
			commercial_contact_id = ?, technical_contact_id = ?,
			location_detail = ?, interconnection_detail = ?, service_detail = ?,
			updated_at = ?
		WHERE id = ?`,
		primaryODF, primaryPort, secondaryODF, secondaryPort,
		boolInt(o.UsesRedundantPoint),
		o.CommercialContactID, o.TechnicalContactID,
		o.LocationDetail, o.InterconnectionDetail, o.ServiceDetail,
		o.UpdatedAt.Format(time.RFC3339),
		string(o.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &workflow.NotFoundError{Kind: "order", ID: string(o.ID)}
	}

	return tx.Commit()
}

func scanOrder(row rowScanner) (*order.ServiceOrder, error) {
	var o order.ServiceOrder
	var id, viabilityID string
	var dist, mrc, nrc string
	var primaryODF, secondaryODF sql.NullString
	var primaryPort, secondaryPort sql.NullInt64
	var redundant, circuitCreated int
	var commercial, technical, locDetail, icDetail, svcDetail sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&id, &o.DocumentNumber, &viabilityID, &o.CompanyID,
		&o.RouteID, &o.ConnectionTypeID, &dist, &mrc, &nrc,
		&primaryODF, &primaryPort, &secondaryODF, &secondaryPort, &redundant,
		&commercial, &technical,
		&locDetail, &icDetail, &svcDetail,
		&circuitCreated, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.ID = workflow.OrderID(id)
	o.ViabilityID = workflow.ViabilityID(viabilityID)
	if o.DistanceKM, err = decimal.NewFromString(dist); err != nil {
		return nil, fmt.Errorf("order distance: %w", err)
	}
	if o.MRC, err = decimal.NewFromString(mrc); err != nil {
		return nil, fmt.Errorf("order mrc: %w", err)
	}
	if o.NRC, err = decimal.NewFromString(nrc); err != nil {
		return nil, fmt.Errorf("order nrc: %w", err)
	}
	o.Primary = assignmentFromCols(primaryODF, primaryPort)
	o.Secondary = assignmentFromCols(secondaryODF, secondaryPort)
	o.UsesRedundantPoint = redundant != 0
	o.CommercialContactID = commercial.String
	o.TechnicalContactID = technical.String
	o.LocationDetail = locDetail.String
	o.InterconnectionDetail = icDetail.String
	o.ServiceDetail = svcDetail.String
	o.CircuitCreated = circuitCreated != 0
	if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("order created_at: %w", err)
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("order updated_at: %w", err)
	}
	return &o, nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (s *Store) AddAttachment(ctx context.Context, att order.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_attachments (id, order_id, kind, filename, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		att.ID, string(att.OrderID), string(att.Kind), att.Filename,
		att.UploadedAt.Format(time.RFC3339))
	return err
}

func (s *Store) ListAttachments(ctx context.Context, orderID workflow.OrderID) ([]order.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, kind, filename, uploaded_at
		FROM order_attachments WHERE order_id = ? ORDER BY uploaded_at`, string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Attachment
	for rows.Next() {
		var a order.Attachment
		var oid, kind, uploadedAt string
		if err := rows.Scan(&a.ID, &oid, &kind, &a.Filename, &uploadedAt); err != nil {
			return nil, err
		}
		a.OrderID = workflow.OrderID(oid)
		a.Kind = order.AttachmentKind(kind)
		if a.UploadedAt, err = time.Parse(time.RFC3339, uploadedAt); err != nil {
			return nil, fmt.Errorf("attachment uploaded_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// CIRCUITS
// =============================================================================

// CreateCircuit inserts the circuit and flips the order's circuit_created
// flag in one transaction. The guarded update makes the operation
// exactly-once: a second attempt finds no row with circuit_created = 0.
func (s *Store) CreateCircuit(ctx context.Context, c *order.Circuit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET circuit_created = 1, updated_at = ?
		WHERE id = ? AND circuit_created = 0`,
		time.Now().UTC().Format(time.RFC3339), string(c.OrderID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM orders WHERE id = ?`, string(c.OrderID)).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return &workflow.NotFoundError{Kind: "order", ID: string(c.OrderID)}
		}
		return &order.CircuitExistsError{OrderID: c.OrderID}
	}

	primaryODF, primaryPort := assignmentCols(c.Primary)
	secondaryODF, secondaryPort := assignmentCols(c.Secondary)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO circuits (
			id, document_number, order_id, cid_a, cid_z,
			primary_odf, primary_port, secondary_odf, secondary_port,
			ftp_reference, distance_km, mrc, nrc, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.DocumentNumber, string(c.OrderID), c.CIDA, c.CIDZ,
		primaryODF, primaryPort, secondaryODF, secondaryPort,
		c.FTPReference, c.DistanceKM.String(), c.MRC.String(), c.NRC.String(),
		c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert circuit: %w", err)
	}

	return tx.Commit()
}

const selectCircuitSQL = `
	SELECT id, document_number, order_id, cid_a, cid_z,
		primary_odf, primary_port, secondary_odf, secondary_port,
		ftp_reference, distance_km, mrc, nrc, created_at
	FROM circuits`

func (s *Store) GetCircuit(ctx context.Context, id workflow.CircuitID) (*order.Circuit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, selectCircuitSQL+` WHERE id = ?`, string(id))
	c, err := scanCircuit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) GetCircuitByOrder(ctx context.Context, orderID workflow.OrderID) (*order.Circuit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, selectCircuitSQL+` WHERE order_id = ?`, string(orderID))
	c, err := scanCircuit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scanCircuit(row rowScanner) (*order.Circuit, error) {
	var c order.Circuit
	var id, orderID string
	var primaryODF, secondaryODF, ftp sql.NullString
	var primaryPort, secondaryPort sql.NullInt64
	var dist, mrc, nrc, createdAt string

	err := row.Scan(
		&id, &c.DocumentNumber, &orderID, &c.CIDA, &c.CIDZ,
		&primaryODF, &primaryPort, &secondaryODF, &secondaryPort,
		&ftp, &dist, &mrc, &nrc, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID = workflow.CircuitID(id)
	c.OrderID = workflow.OrderID(orderID)
	c.Primary = assignmentFromCols(primaryODF, primaryPort)
	c.Secondary = assignmentFromCols(secondaryODF, secondaryPort)
	c.FTPReference = ftp.String
	if c.DistanceKM, err = decimal.NewFromString(dist); err != nil {
		return nil, fmt.Errorf("circuit distance: %w", err)
	}
	if c.MRC, err = decimal.NewFromString(mrc); err != nil {
		return nil, fmt.Errorf("circuit mrc: %w", err)
	}
	if c.NRC, err = decimal.NewFromString(nrc); err != nil {
		return nil, fmt.Errorf("circuit nrc: %w", err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("circuit created_at: %w", err)
	}
	return &c, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func decimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanDecimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func assignmentCols(p *odf.PortAssignment) (any, any) {
	if p == nil {
		return nil, nil
	}
	return p.ODFCode, p.Port
}

func assignmentFromCols(code sql.NullString, port sql.NullInt64) *odf.PortAssignment {
	if !code.Valid {
		return nil
	}
	return &odf.PortAssignment{ODFCode: code.String, Port: int(port.Int64)}
}
