package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mbolis/typeform-etl/model"
)

// lastSyncOption is the options-table marker updated after every
// successful load.
const lastSyncOption = "typeform_last"

var syncEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Watermark bounds the incremental window. Landed and submitted are
// tracked independently: a response may land without submitting and
// complete later, so a single bound would either re-fetch too much or
// silently skip late completions.
type Watermark struct {
	Landed    time.Time
	Submitted time.Time
}

// LastSync reads the incremental lower bounds from the destination. An
// empty destination, or restart=true, yields the epoch on both bounds:
// sync everything.
func LastSync(ctx context.Context, db *sql.DB, prefix string, restart bool) (Watermark, error) {
	wm := Watermark{Landed: syncEpoch, Submitted: syncEpoch}
	if restart {
		return wm, nil
	}

	table := prefix + "responses"
	landed, err := maxTimestamp(ctx, db, table, "landed")
	if err != nil {
		return wm, fmt.Errorf("read last landed: %w", err)
	}
	submitted, err := maxTimestamp(ctx, db, table, "submitted")
	if err != nil {
		return wm, fmt.Errorf("read last submitted: %w", err)
	}

	if landed.Valid {
		wm.Landed = landed.Time.UTC()
	}
	if submitted.Valid {
		wm.Submitted = submitted.Time.UTC()
	}
	return wm, nil
}

// maxTimestamp avoids the MAX() aggregate on purpose: SQLite loses the
// column's declared type through aggregates, and with it the driver's
// time conversion.
func maxTimestamp(ctx context.Context, db *sql.DB, table, column string) (sql.NullTime, error) {
	var value sql.NullTime
	err := db.QueryRowContext(ctx, fmt.Sprintf(`
	SELECT %[1]s FROM %[2]s
	WHERE %[1]s IS NOT NULL
	ORDER BY %[1]s DESC
	LIMIT 1`, quoteIdent(column), quoteIdent(table))).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullTime{}, nil
	}
	return value, err
}

// SyncRecord captures one completed run for the options marker and the
// append-only synclog.
type SyncRecord struct {
	RunID      string
	Version    string
	Stats      model.SyncStats
	LastLanded *time.Time
}

// RecordSync advances the watermark marker and appends the synclog
// entry. When the run fetched no responses LastLanded is nil and the
// marker is left untouched, so the watermark never moves backward.
func RecordSync(ctx context.Context, db *sql.DB, dialect Dialect, prefix string, record SyncRecord) error {
	if record.LastLanded != nil {
		query := fmt.Sprintf(`
		INSERT INTO %s (name, value) VALUES (%s, %s)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
			quoteIdent(prefix+"options"), dialect.Placeholder(1), dialect.Placeholder(2))
		value := record.LastLanded.UTC().Format("2006-01-02 15:04:05")
		if _, err := db.ExecContext(ctx, query, lastSyncOption, value); err != nil {
			return fmt.Errorf("update %s option: %w", lastSyncOption, err)
		}
	}

	placeholders := make([]string, 7)
	for i := range placeholders {
		placeholders[i] = dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (run_id, timestamp, version, forms, form_items, responses, answers)
	VALUES (%s)`,
		quoteIdent(prefix+"synclog"), strings.Join(placeholders, ", "))
	_, err := db.ExecContext(ctx, query,
		record.RunID,
		time.Now().UTC(),
		record.Version,
		record.Stats.Forms,
		record.Stats.FormItems,
		record.Stats.Responses,
		record.Stats.Answers,
	)
	if err != nil {
		return fmt.Errorf("append synclog: %w", err)
	}
	return nil
}
