// Optional Postgres storage for the static transit network. The
// simulation runs from built-in defaults when no DSN is configured;
// with one, the network is read from (and first seeded into) these
// tables so operators can edit routes without a rebuild.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"valley-transit/internal/transit"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// EnsureSchema creates the network tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS routes (
			vehicle_id        TEXT PRIMARY KEY,
			kind              TEXT NOT NULL,
			route_name        TEXT NOT NULL,
			color             TEXT NOT NULL,
			next_stop         TEXT NOT NULL,
			cycle_ticks       INTEGER NOT NULL,
			phase_multiplier  DOUBLE PRECISION NOT NULL DEFAULT 1,
			delay_probability DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS route_waypoints (
			vehicle_id TEXT NOT NULL REFERENCES routes(vehicle_id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			lat        DOUBLE PRECISION NOT NULL,
			lng        DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (vehicle_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS stations (
			station_id TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			lat        DOUBLE PRECISION NOT NULL,
			lng        DOUBLE PRECISION NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedDefaults inserts the built-in network when the routes table is
// empty, so a fresh database starts with a working simulation.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&count); err != nil {
		return fmt.Errorf("count routes: %w", err)
	}
	if count > 0 {
		return nil
	}

	network := transit.DefaultNetwork()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rc := range network.Routes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routes (vehicle_id, kind, route_name, color, next_stop, cycle_ticks, phase_multiplier, delay_probability)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rc.VehicleID, string(rc.Kind), rc.RouteName, rc.Color, rc.NextStop, rc.CycleTicks, rc.PhaseMultiplier, rc.DelayProbability,
		); err != nil {
			return fmt.Errorf("seed route %s: %w", rc.VehicleID, err)
		}
		for i, wp := range rc.Path {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO route_waypoints (vehicle_id, seq, lat, lng) VALUES ($1, $2, $3, $4)`,
				rc.VehicleID, i, wp.Lat, wp.Lng,
			); err != nil {
				return fmt.Errorf("seed waypoint %s/%d: %w", rc.VehicleID, i, err)
			}
		}
	}
	for _, st := range network.Stations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stations (station_id, name, kind, lat, lng) VALUES ($1, $2, $3, $4, $5)`,
			st.ID, st.Name, string(st.Kind), st.Location.Lat, st.Location.Lng,
		); err != nil {
			return fmt.Errorf("seed station %s: %w", st.ID, err)
		}
	}
	return tx.Commit()
}

// LoadNetwork reads the full network. Routes with fewer than two
// waypoints cannot be simulated and are skipped.
func LoadNetwork(ctx context.Context, db *sql.DB) (transit.Network, error) {
	network := transit.Network{Center: transit.CenterOfMap}

	rows, err := db.QueryContext(ctx,
		`SELECT vehicle_id, kind, route_name, color, next_stop, cycle_ticks, phase_multiplier, delay_probability
		 FROM routes ORDER BY vehicle_id`)
	if err != nil {
		return network, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rc transit.RouteConfig
		var kind string
		if err := rows.Scan(&rc.VehicleID, &kind, &rc.RouteName, &rc.Color, &rc.NextStop,
			&rc.CycleTicks, &rc.PhaseMultiplier, &rc.DelayProbability); err != nil {
			return network, err
		}
		rc.Kind = transit.VehicleKind(kind)
		network.Routes = append(network.Routes, rc)
	}
	if err := rows.Err(); err != nil {
		return network, err
	}

	kept := network.Routes[:0]
	for _, rc := range network.Routes {
		path, err := loadWaypoints(ctx, db, rc.VehicleID)
		if err != nil {
			return network, err
		}
		if len(path) < 2 {
			continue
		}
		rc.Path = path
		kept = append(kept, rc)
	}
	network.Routes = kept

	stRows, err := db.QueryContext(ctx,
		`SELECT station_id, name, kind, lat, lng FROM stations ORDER BY station_id`)
	if err != nil {
		return network, fmt.Errorf("query stations: %w", err)
	}
	defer stRows.Close()
	for stRows.Next() {
		var st transit.Station
		var kind string
		if err := stRows.Scan(&st.ID, &st.Name, &kind, &st.Location.Lat, &st.Location.Lng); err != nil {
			return network, err
		}
		st.Kind = transit.StationKind(kind)
		network.Stations = append(network.Stations, st)
	}
	return network, stRows.Err()
}

func loadWaypoints(ctx context.Context, db *sql.DB, vehicleID string) (transit.Path, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT lat, lng FROM route_waypoints WHERE vehicle_id = $1 ORDER BY seq`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("query waypoints for %s: %w", vehicleID, err)
	}
	defer rows.Close()
	var path transit.Path
	for rows.Next() {
		var c transit.Coordinate
		if err := rows.Scan(&c.Lat, &c.Lng); err != nil {
			return nil, err
		}
		path = append(path, c)
	}
	return path, rows.Err()
}
