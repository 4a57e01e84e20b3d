package database

import "time"

// LoadCalendar returns trading-calendar days for [start, end]. When the
// calendar table is empty for the range, open days are approximated as
// weekdays; the reference table is optional.
func (db *DB) LoadCalendar(start, end string) ([]CalendarDay, error) {
	var out []CalendarDay
	err := db.conn.Select(&out,
		`SELECT ds, is_open FROM dim_trading_calendar WHERE ds BETWEEN ? AND ? ORDER BY ds`,
		start, end)
	if err == nil && len(out) > 0 {
		return out, nil
	}

	s, perr := time.Parse("2006-01-02", start)
	if perr != nil {
		return nil, perr
	}
	e, perr := time.Parse("2006-01-02", end)
	if perr != nil {
		return nil, perr
	}
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		out = append(out, CalendarDay{
			DS:     d.Format("2006-01-02"),
			IsOpen: wd != time.Saturday && wd != time.Sunday,
		})
	}
	return out, nil
}

// SetCalendarDay upserts one calendar entry.
func (db *DB) SetCalendarDay(ds string, isOpen bool) error {
	_, err := db.conn.Exec(`
		INSERT INTO dim_trading_calendar (ds, is_open) VALUES (?, ?)
		ON CONFLICT(ds) DO UPDATE SET is_open = excluded.is_open`,
		ds, isOpen)
	return err
}
