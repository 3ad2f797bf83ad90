package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Andrew-L1x/LaundryLocator-sub004/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

// Repo implements domain.ListingRepository and domain.ClaimRepository on MySQL.
type Repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) *Repo { return &Repo{db: db} }

// Open connects with the mysql driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type listingRow struct {
	ID          int64          `db:"id"`
	Slug        string         `db:"slug"`
	Name        string         `db:"name"`
	Address     string         `db:"address"`
	City        string         `db:"city"`
	State       string         `db:"state"`
	Zip         string         `db:"zip"`
	Phone       string         `db:"phone"`
	Website     string         `db:"website"`
	Lat         float64        `db:"lat"`
	Lng         float64        `db:"lng"`
	Hours       string         `db:"hours"`
	Schedule    []byte         `db:"schedule"`
	Services    []byte         `db:"services"`
	Description string         `db:"description"`
	Rating      float64        `db:"rating"`
	ReviewCount int            `db:"review_count"`
	IsPremium   bool           `db:"is_premium"`
	IsFeatured  bool           `db:"is_featured"`
	ClaimedBy   sql.NullString `db:"claimed_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r listingRow) toDomain() domain.Listing {
	l := domain.Listing{
		ID:          r.ID,
		Name:        r.Name,
		Slug:        r.Slug,
		Address:     r.Address,
		City:        r.City,
		State:       r.State,
		Zip:         r.Zip,
		Phone:       r.Phone,
		Website:     r.Website,
		Lat:         r.Lat,
		Lng:         r.Lng,
		Hours:       r.Hours,
		Description: r.Description,
		Rating:      r.Rating,
		ReviewCount: r.ReviewCount,
		IsPremium:   r.IsPremium,
		IsFeatured:  r.IsFeatured,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Schedule) > 0 {
		_ = json.Unmarshal(r.Schedule, &l.Schedule)
	}
	if len(r.Services) > 0 {
		_ = json.Unmarshal(r.Services, &l.Services)
	}
	if r.ClaimedBy.Valid {
		s := r.ClaimedBy.String
		l.ClaimedBy = &s
	}
	return l
}

func toListings(rows []listingRow) []domain.Listing {
	out := make([]domain.Listing, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

// UpsertListing inserts by slug (or id) and writes the stored id back into l.
func (r *Repo) UpsertListing(ctx context.Context, l *domain.Listing) error {
	services := l.Services
	if services == nil {
		services = []string{}
	}
	res, err := r.db.ExecContext(ctx, upsertListingSQL,
		l.ID,
		l.Slug,
		l.Name,
		l.Address,
		l.City,
		l.State,
		l.Zip,
		l.Phone,
		l.Website,
		l.Lat,
		l.Lng,
		l.Hours,
		valJSON(l.Schedule),
		valJSON(services),
		l.Description,
		l.Rating,
		l.ReviewCount,
		l.IsPremium,
		l.IsFeatured,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		l.ID = id
	}
	return nil
}

// UpdatePremiumFeatures applies the non-nil fields and re-derives the schedule from new hours.
func (r *Repo) UpdatePremiumFeatures(ctx context.Context, id int64, pf domain.PremiumFeatures) (domain.Listing, error) {
	var schedule, services any
	if pf.Hours != nil {
		schedule = valJSON(domain.ParseSchedule(*pf.Hours))
	}
	if pf.Services != nil {
		services = valJSON(pf.Services)
	}
	if _, err := r.db.ExecContext(ctx, updatePremiumSQL,
		valStr(pf.Description),
		valStr(pf.Website),
		valStr(pf.Phone),
		valStr(pf.Hours),
		schedule,
		services,
		valBool(pf.IsFeatured),
		id,
	); err != nil {
		return domain.Listing{}, err
	}
	return r.GetListing(ctx, id)
}

func setPromotion(ctx context.Context, tx *sqlx.Tx, id int64, p domain.Promotion) error {
	res, err := tx.ExecContext(ctx, setPromotionSQL, valStr(p.ClaimedBy), p.Premium, p.Featured, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// unchanged rows report 0 too; tell them apart
		return mustExist(ctx, tx, listingExistsSQL, id)
	}
	return nil
}

// mustExist maps an empty result of a "SELECT 1 ..." query to ErrNotFound.
func mustExist(ctx context.Context, tx *sqlx.Tx, query string, arg any) error {
	var one int
	if err := tx.GetContext(ctx, &one, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *Repo) LogImportMiss(ctx context.Context, source string, row int, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	_, err := r.db.ExecContext(ctx, insertMissSQL, source, row, reason)
	return err
}

func (r *Repo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	var row listingRow
	if err := r.db.GetContext(ctx, &row, getListingSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, err
	}
	return row.toDomain(), nil
}

// GetListingsByIDs returns the rows that exist, in no particular order.
func (r *Repo) GetListingsByIDs(ctx context.Context, ids []int64) ([]domain.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(listingsByIDsSQL, ids)
	if err != nil {
		return nil, err
	}
	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return toListings(rows), nil
}

func (r *Repo) ListByState(ctx context.Context, state string, limit int) ([]domain.Listing, error) {
	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, listByStateSQL, state, limit); err != nil {
		return nil, err
	}
	return toListings(rows), nil
}

func (r *Repo) ListByCity(ctx context.Context, city, state string, limit int) ([]domain.Listing, error) {
	var rows []listingRow
	if err := r.db.SelectContext(ctx, &rows, listByCitySQL, city, state, limit); err != nil {
		return nil, err
	}
	return toListings(rows), nil
}

func (r *Repo) ListCoords(ctx context.Context, afterID int64, limit int) ([]domain.GeoPoint, error) {
	var rows []struct {
		ID  int64   `db:"id"`
		Lat float64 `db:"lat"`
		Lng float64 `db:"lng"`
	}
	if err := r.db.SelectContext(ctx, &rows, listCoordsSQL, afterID, limit); err != nil {
		return nil, err
	}
	out := make([]domain.GeoPoint, len(rows))
	for i, p := range rows {
		out[i] = domain.GeoPoint{ID: p.ID, Coords: domain.Coords{Lat: p.Lat, Lng: p.Lng}}
	}
	return out, nil
}
