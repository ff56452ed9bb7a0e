package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ConfirmationRecord is the persisted form of a confirmed reservation.  It
// carries the salted confirmation hash, never the token itself, so the
// archive can later verify a token presented at the venue door.
type ConfirmationRecord struct {
	ReservationID    int64
	HoldID           int
	Email            string
	ConfirmationHash string
	SeatLabels       []string
	ConfirmedAt      time.Time
}

// ErrConfirmationNotFound is returned by the archive lookups.
var ErrConfirmationNotFound = errors.New("confirmation not found")

// ConfirmationArchive writes confirmed reservations to MySQL.  It is fed
// from the reservation.confirmed queue and is never read back to rebuild
// the in-memory store.
type ConfirmationArchive struct {
	db *sql.DB
}

// NewConfirmationArchive returns an archive bound to the given database.
func NewConfirmationArchive(db *sql.DB) *ConfirmationArchive { return &ConfirmationArchive{db: db} }

// EnsureSchema creates the archive tables when they do not exist yet.
func (a *ConfirmationArchive) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS confirmations (
			reservation_id    BIGINT       NOT NULL PRIMARY KEY,
			hold_id           INT          NOT NULL,
			email             VARCHAR(320) NOT NULL,
			confirmation_hash VARCHAR(255) NOT NULL,
			confirmed_at      DATETIME     NOT NULL,
			created_at        DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS confirmation_seats (
			reservation_id BIGINT      NOT NULL,
			seat_label     VARCHAR(16) NOT NULL,
			PRIMARY KEY (reservation_id, seat_label)
		)`,
	}
	for _, q := range stmts {
		if _, err := a.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Save stores a confirmation and its seats in one transaction.  Saving the
// same reservation twice is a no-op so redelivered messages are harmless.
func (a *ConfirmationArchive) Save(ctx context.Context, rec ConfirmationRecord) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT IGNORE INTO confirmations (reservation_id, hold_id, email, confirmation_hash, confirmed_at) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, rec.ReservationID, rec.HoldID, rec.Email, rec.ConfirmationHash,
		rec.ConfirmedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already archived.
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}

	if len(rec.SeatLabels) > 0 {
		query := `INSERT INTO confirmation_seats (reservation_id, seat_label) VALUES `
		args := make([]interface{}, 0, len(rec.SeatLabels)*2)
		for i, label := range rec.SeatLabels {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, rec.ReservationID, label)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByReservationID loads an archived confirmation with its seat labels.
func (a *ConfirmationArchive) GetByReservationID(ctx context.Context, id int64) (ConfirmationRecord, error) {
	const q = `SELECT reservation_id, hold_id, email, confirmation_hash, confirmed_at FROM confirmations WHERE reservation_id = ?`
	var rec ConfirmationRecord
	err := a.db.QueryRowContext(ctx, q, id).Scan(&rec.ReservationID, &rec.HoldID, &rec.Email, &rec.ConfirmationHash, &rec.ConfirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConfirmationRecord{}, ErrConfirmationNotFound
		}
		return ConfirmationRecord{}, err
	}
	rows, err := a.db.QueryContext(ctx, `SELECT seat_label FROM confirmation_seats WHERE reservation_id = ? ORDER BY seat_label`, id)
	if err != nil {
		return ConfirmationRecord{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return ConfirmationRecord{}, err
		}
		rec.SeatLabels = append(rec.SeatLabels, label)
	}
	if err := rows.Err(); err != nil {
		return ConfirmationRecord{}, err
	}
	return rec, nil
}
