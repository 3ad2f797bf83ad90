package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

type claimRow struct {
	ID           string       `db:"id"`
	ListingID    int64        `db:"listing_id"`
	UserID       string       `db:"user_id"`
	OwnerName    string       `db:"owner_name"`
	Email        string       `db:"email"`
	Phone        string       `db:"phone"`
	Status       string       `db:"status"`
	Plan         string       `db:"plan"`
	BillingCycle string       `db:"billing_cycle"`
	PeriodStart  sql.NullTime `db:"period_start"`
	PeriodEnd    sql.NullTime `db:"period_end"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromClaim(c domain.Claim) claimRow {
	return claimRow{
		ID:           c.ID,
		ListingID:    c.ListingID,
		UserID:       c.UserID,
		OwnerName:    c.OwnerName,
		Email:        c.Email,
		Phone:        c.Phone,
		Status:       c.Status,
		Plan:         c.Plan,
		BillingCycle: c.BillingCycle,
		PeriodStart:  nullTime(c.PeriodStart),
		PeriodEnd:    nullTime(c.PeriodEnd),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r claimRow) toDomain() domain.Claim {
	c := domain.Claim{
		ID:           r.ID,
		ListingID:    r.ListingID,
		UserID:       r.UserID,
		OwnerName:    r.OwnerName,
		Email:        r.Email,
		Phone:        r.Phone,
		Status:       r.Status,
		Plan:         r.Plan,
		BillingCycle: r.BillingCycle,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.PeriodStart.Valid {
		t := r.PeriodStart.Time
		c.PeriodStart = &t
	}
	if r.PeriodEnd.Valid {
		t := r.PeriodEnd.Time
		c.PeriodEnd = &t
	}
	return c
}

// CreateClaim locks the listing's open claims so two submissions cannot both succeed.
func (r *Repo) CreateClaim(ctx context.Context, c domain.Claim) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.GetContext(ctx, &existing, openClaimForUpdateSQL, c.ListingID)
	switch {
	case err == nil:
		return domain.ErrConflict
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if _, err := tx.NamedExecContext(ctx, insertClaimSQL, fromClaim(c)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	var row claimRow
	if err := r.db.GetContext(ctx, &row, getClaimSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, domain.ErrNotFound
		}
		return domain.Claim{}, err
	}
	return row.toDomain(), nil
}

// UpdateClaim promotes the listing first, so a missing claim rolls the promotion back.
func (r *Repo) UpdateClaim(ctx context.Context, c domain.Claim, p domain.Promotion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := setPromotion(ctx, tx, c.ListingID, p); err != nil {
		return err
	}

	res, err := tx.NamedExecContext(ctx, updateClaimSQL, fromClaim(c))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := mustExist(ctx, tx, claimExistsSQL, c.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) ActiveClaim(ctx context.Context, listingID int64) (domain.Claim, error) {
	var row claimRow
	if err := r.db.GetContext(ctx, &row, activeClaimSQL, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, domain.ErrNotFound
		}
		return domain.Claim{}, err
	}
	return row.toDomain(), nil
}
