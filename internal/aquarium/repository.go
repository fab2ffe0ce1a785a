package aquarium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200

	// timestampLayout matches the logs.timestamp column default, so rows
	// written here and by the CRUD layer sort together as text.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// SQLiteRepository is the persistence gateway shared by the correction loop
// and the CRUD layer. Every call is a single statement or transaction.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpdateSensorValue stores value on every sensor row of the given type.
// Matching no rows is not an error: the reading is simply not persisted.
func (r *SQLiteRepository) UpdateSensorValue(ctx context.Context, sensorType string, value float64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE sensors SET value = ? WHERE type = ?",
		value, sensorType,
	); err != nil {
		return fmt.Errorf("updating %s sensor value: %w", sensorType, err)
	}
	return nil
}

// ResolveSensorID returns the id of the first sensor row of the given type.
// Returns ErrSensorNotFound if there is none.
func (r *SQLiteRepository) ResolveSensorID(ctx context.Context, sensorType string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM sensors WHERE type = ? ORDER BY id LIMIT 1",
		sensorType,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrSensorNotFound, sensorType)
		}
		return 0, fmt.Errorf("resolving %s sensor: %w", sensorType, err)
	}
	return id, nil
}

// AppendLog inserts a log entry for sensorID, timestamped now.
func (r *SQLiteRepository) AppendLog(ctx context.Context, sensorID int64, message string) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO logs (sensor_id, message, timestamp) VALUES (?, ?, ?)",
		sensorID, message, time.Now().UTC().Format(timestampLayout),
	); err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}
	return nil
}

// UpdateDeviceStatus sets status on every device row with the given name.
// Like UpdateSensorValue, matching no rows is not an error.
func (r *SQLiteRepository) UpdateDeviceStatus(ctx context.Context, name, status string) error {
	if status != StatusOn && status != StatusOff {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE devices SET status = ? WHERE name = ?",
		status, name,
	); err != nil {
		return fmt.Errorf("updating device %s status: %w", name, err)
	}
	return nil
}

// GetSensorByType returns the first sensor row of the given type.
func (r *SQLiteRepository) GetSensorByType(ctx context.Context, sensorType string) (*Sensor, error) {
	var s Sensor
	var value sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		"SELECT id, aquarium_id, type, value FROM sensors WHERE type = ? ORDER BY id LIMIT 1",
		sensorType,
	).Scan(&s.ID, &s.AquariumID, &s.Type, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, sensorType)
		}
		return nil, fmt.Errorf("querying sensor: %w", err)
	}
	if value.Valid {
		v := value.Float64
		s.Value = &v
	}
	return &s, nil
}

// GetDeviceByName returns the first device row with the given name.
func (r *SQLiteRepository) GetDeviceByName(ctx context.Context, name string) (*Device, error) {
	var d Device
	err := r.db.QueryRowContext(ctx,
		"SELECT id, aquarium_id, name, status FROM devices WHERE name = ? ORDER BY id LIMIT 1",
		name,
	).Scan(&d.ID, &d.AquariumID, &d.Name, &d.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return &d, nil
}

// ListLogs returns log entries matching the filter, most recent first.
func (r *SQLiteRepository) ListLogs(ctx context.Context, filter LogFilter) (*LogListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLogLimit
	}
	if filter.Limit > maxLogLimit {
		filter.Limit = maxLogLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := ""
	var args []any
	if filter.SensorID != 0 {
		where = "WHERE sensor_id = ?"
		args = append(args, filter.SensorID)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM logs " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting logs: %w", err)
	}

	query := "SELECT id, sensor_id, message, timestamp FROM logs " + where +
		" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	logs := []LogEntry{}
	for rows.Next() {
		var entry LogEntry
		var ts string
		if err := rows.Scan(&entry.ID, &entry.SensorID, &entry.Message, &ts); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing log timestamp %q: %w", ts, err)
		}
		entry.Timestamp = t
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}

	return &LogListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Provision makes sure the aquarium row exists with one sensor row per type
// and one device row per name. Existing rows are left untouched, so device
// status and sensor values survive restarts. New devices start "off".
func (r *SQLiteRepository) Provision(ctx context.Context, spec ProvisionSpec) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting provision transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO aquariums (id, name) VALUES (?, ?)",
		spec.AquariumID, spec.AquariumName,
	); err != nil {
		return fmt.Errorf("provisioning aquarium: %w", err)
	}

	for _, sensorType := range spec.SensorTypes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sensors (aquarium_id, type)
			 SELECT ?, ? WHERE NOT EXISTS (
				SELECT 1 FROM sensors WHERE aquarium_id = ? AND type = ?)`,
			spec.AquariumID, sensorType, spec.AquariumID, sensorType,
		); err != nil {
			return fmt.Errorf("provisioning %s sensor: %w", sensorType, err)
		}
	}

	for _, name := range spec.DeviceNames {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO devices (aquarium_id, name, status)
			 SELECT ?, ?, ? WHERE NOT EXISTS (
				SELECT 1 FROM devices WHERE aquarium_id = ? AND name = ?)`,
			spec.AquariumID, name, StatusOff, spec.AquariumID, name,
		); err != nil {
			return fmt.Errorf("provisioning device %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing provision: %w", err)
	}
	return nil
}
