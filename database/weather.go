package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
)

// The weather store methods have no context since they satisfy weather.Store.

func (d *Database) GetCloudCover(day days.Day) ([]weather.Hour, bool, error) {
	rows, err := d.read.Query(`
		SELECT hour, cloud_cover
		FROM weather_hourly
		WHERE day = ?
		ORDER BY hour ASC`, day)
	if err != nil {
		return nil, false, fmt.Errorf("fetching cloud cover for %s: %w", day, err)
	}
	defer rows.Close()

	var hours []weather.Hour
	for rows.Next() {
		var ts int64
		var h weather.Hour
		if err := rows.Scan(&ts, &h.CloudCover); err != nil {
			return nil, false, fmt.Errorf("scanning cloud cover: %w", err)
		}
		h.Start = time.Unix(ts, 0).In(d.loc)
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading cloud cover: %w", err)
	}

	return hours, len(hours) > 0, nil
}

func (d *Database) SaveCloudCover(day days.Day, hours []weather.Hour) error {
	tx, err := d.write.Begin()
	if err != nil {
		return fmt.Errorf("start transaction for cloud cover: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM weather_hourly WHERE day = ?`, day); err != nil {
		return fmt.Errorf("clearing cloud cover for %s: %w", day, err)
	}
	for _, h := range hours {
		_, err := tx.Exec(`
			INSERT INTO weather_hourly (day, hour, cloud_cover)
			VALUES (?, ?, ?)`,
			day, h.Start.Unix(), h.CloudCover)
		if err != nil {
			return fmt.Errorf("saving cloud cover for %s: %w", day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cloud cover: %w", err)
	}
	return nil
}

func (d *Database) GetDaylight(day days.Day) (float64, bool, error) {
	var minutes float64
	err := d.read.QueryRow(`SELECT minutes FROM daylight WHERE day = ?`, day).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("fetching daylight for %s: %w", day, err)
	}
	return minutes, true, nil
}

func (d *Database) SaveDaylight(day days.Day, minutes float64) error {
	_, err := d.write.Exec(`
		INSERT INTO daylight (day, minutes)
		VALUES (?, ?)
		ON CONFLICT (day) DO UPDATE SET minutes = excluded.minutes`,
		day, minutes)
	if err != nil {
		return fmt.Errorf("saving daylight for %s: %w", day, err)
	}
	return nil
}
