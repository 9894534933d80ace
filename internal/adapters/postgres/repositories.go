package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tally/internal/domain"
)

// ManifestRepository

func (db *DB) AddCodes(ctx context.Context, codes []string) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO manifest_codes (code)
		SELECT unnest($1::text[])
		ON CONFLICT (code) DO NOTHING
	`, codes)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (db *DB) Contains(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM manifest_codes WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (db *DB) Remove(ctx context.Context, code string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM manifest_codes WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) Missing(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT m.code FROM manifest_codes m
		WHERE NOT EXISTS (SELECT 1 FROM scan_records s WHERE s.code = m.code)
		ORDER BY m.code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	missing := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		missing = append(missing, code)
	}
	return missing, rows.Err()
}

func (db *DB) CountCodes(ctx context.Context) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM manifest_codes`).Scan(&n)
	return n, err
}

func (db *DB) ClearCodes(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM manifest_codes`)
	return err
}

// LedgerRepository

const recordColumns = `code, scanned_at, present_in_manifest, status, carrier`

func (db *DB) Insert(ctx context.Context, rec domain.ScanRecord) (domain.ScanRecord, bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO scan_records (code, scanned_at, present_in_manifest, status, carrier)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
	`, rec.Code, rec.Timestamp, rec.PresentInManifest, string(rec.Status), rec.Carrier)
	if err != nil {
		return domain.ScanRecord{}, false, err
	}
	if tag.RowsAffected() > 0 {
		return rec, true, nil
	}
	// Lost the race; surface the winning record. A concurrent delete between
	// the conflict and this read is last-writer-wins, so an absent row counts
	// as our insert having been superseded.
	existing, found, err := db.Get(ctx, rec.Code)
	if err != nil {
		return domain.ScanRecord{}, false, err
	}
	if !found {
		return rec, false, nil
	}
	return existing, false, nil
}

func (db *DB) Get(ctx context.Context, code string) (domain.ScanRecord, bool, error) {
	rec, err := scanRecord(db.Pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM scan_records WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScanRecord{}, false, nil
	}
	if err != nil {
		return domain.ScanRecord{}, false, err
	}
	return rec, true, nil
}

func (db *DB) List(ctx context.Context) ([]domain.ScanRecord, error) {
	return db.queryRecords(ctx, `SELECT `+recordColumns+` FROM scan_records ORDER BY scanned_at DESC, seq ASC`)
}

func (db *DB) ListByStatus(ctx context.Context, status domain.Status) ([]domain.ScanRecord, error) {
	return db.queryRecords(ctx, `SELECT `+recordColumns+` FROM scan_records WHERE status = $1 ORDER BY scanned_at DESC, seq ASC`, string(status))
}

func (db *DB) queryRecords(ctx context.Context, sql string, args ...any) ([]domain.ScanRecord, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]domain.ScanRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (domain.ScanRecord, error) {
	var rec domain.ScanRecord
	var status string
	if err := row.Scan(&rec.Code, &rec.Timestamp, &rec.PresentInManifest, &status, &rec.Carrier); err != nil {
		return domain.ScanRecord{}, err
	}
	rec.Status = domain.Status(status)
	return rec, nil
}

func (db *DB) SetStatus(ctx context.Context, code string, status domain.Status) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `UPDATE scan_records SET status = $2 WHERE code = $1`, code, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) SetCarrier(ctx context.Context, code, carrier string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `UPDATE scan_records SET carrier = $2 WHERE code = $1`, code, carrier)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) AssignCarrierToUnset(ctx context.Context, carrier string) (int, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scan_records SET carrier = $1
		WHERE carrier IS NULL OR btrim(carrier) = ''
	`, carrier)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (db *DB) Delete(ctx context.Context, code string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM scan_records WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) DeleteMany(ctx context.Context, codes []string) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := db.Pool.Exec(ctx, `DELETE FROM scan_records WHERE code = ANY($1::text[])`, codes)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (db *DB) CountScans(ctx context.Context) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM scan_records`).Scan(&n)
	return n, err
}

func (db *DB) ClearScans(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM scan_records`)
	return err
}

// DashboardStateRepository

func (db *DB) Baseline(ctx context.Context) (domain.DailyBaseline, error) {
	var b domain.DailyBaseline
	err := db.Pool.QueryRow(ctx, `
		SELECT day, total, collected, failed, reset_at FROM dashboard_state WHERE id = 1
	`).Scan(&b.Day, &b.Total, &b.Collected, &b.Failed, &b.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyBaseline{}, nil
	}
	if err != nil {
		return domain.DailyBaseline{}, err
	}
	b.Day = b.Day.UTC()
	return b, nil
}

func (db *DB) SetBaseline(ctx context.Context, b domain.DailyBaseline) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO dashboard_state (id, day, total, collected, failed, reset_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			day = EXCLUDED.day,
			total = EXCLUDED.total,
			collected = EXCLUDED.collected,
			failed = EXCLUDED.failed,
			reset_at = EXCLUDED.reset_at
	`, b.Day, b.Total, b.Collected, b.Failed, b.ResetAt)
	return err
}
