package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository defines the interface for device registry persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all registered devices.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device registration.
	// Returns ErrDeviceExists if the ID is taken, ErrDuplicateTopic if
	// the topic is already registered.
	Create(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// ReadSetting retrieves one value from the settings table.
	// Returns an empty string when the key is absent.
	ReadSetting(ctx context.Context, key string) (string, error)
}

// SQLiteRepository implements Repository against the registry database.
//
// The database is owned by the surrounding application; this core
// mostly reads it once at startup, so the schema is created only if
// missing.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Init creates the registry tables if they do not exist yet.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS devices (
			id    TEXT PRIMARY KEY,
			name  TEXT NOT NULL,
			topic TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialising registry schema: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT id, name, topic FROM devices WHERE id = ?`

	var d Device
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Name, &d.Topic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return &d, nil
}

// List retrieves all registered devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT id, name, topic FROM devices ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.Name, &d.Topic); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// Create inserts a new device registration.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	query := `INSERT INTO devices (id, name, topic) VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, device.ID, device.Name, device.Topic)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "devices.id"):
			return ErrDeviceExists
		case strings.Contains(msg, "devices.topic"):
			return ErrDuplicateTopic
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ReadSetting retrieves one value from the settings table.
func (r *SQLiteRepository) ReadSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, nil
}
