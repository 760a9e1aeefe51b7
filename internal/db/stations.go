package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/joeblew999/plat-moisture/internal/station"
)

const schema = `CREATE TABLE IF NOT EXISTS stations (
	station_id        VARCHAR,
	station_name      VARCHAR,
	longitude         DOUBLE,
	latitude          DOUBLE,
	elevation         VARCHAR,
	data_depth        VARCHAR,
	record_start_date VARCHAR,
	record_end_date   VARCHAR
)`

func ensureSchema(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("creating stations table: %w", err)
	}
	return nil
}

// ReplaceStations swaps the stations table contents for c.
func ReplaceStations(ctx context.Context, conn *sql.DB, c *station.Collection) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stations"); err != nil {
		return fmt.Errorf("clearing stations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stations
		(station_id, station_name, longitude, latitude, elevation, data_depth, record_start_date, record_end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing station insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range c.All() {
		p := s.Properties()
		pos := s.Position()
		if _, err := stmt.ExecContext(ctx,
			s.ID(), s.Name(), pos.Lon(), pos.Lat(),
			p.Elevation, p.DataDepth, p.RecordStartDate, p.RecordEndDate,
		); err != nil {
			return fmt.Errorf("inserting station %s: %w", s.ID(), err)
		}
	}
	return tx.Commit()
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchStations returns the ids of stations whose name or id contains q,
// ordered by name.
func SearchStations(ctx context.Context, conn *sql.DB, q string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + likeEscaper.Replace(q) + "%"
	rows, err := conn.QueryContext(ctx, `SELECT station_id FROM stations
		WHERE station_name ILIKE ? ESCAPE '\' OR station_id ILIKE ? ESCAPE '\'
		ORDER BY station_name, station_id
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching stations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountStations returns the number of stored stations.
func CountStations(ctx context.Context, conn *sql.DB) (int, error) {
	var n int
	err := conn.QueryRowContext(ctx, "SELECT count(*) FROM stations").Scan(&n)
	return n, err
}
