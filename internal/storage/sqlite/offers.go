package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

type offerStore struct {
	db *sql.DB
}

func newOfferStore(db *sql.DB) storage.OfferStore {
	return &offerStore{db: db}
}

const offerColumns = `id, source, type, duration, platform, title, probable_game_name,
	seen_first, seen_last, valid_from, valid_to, raw_snapshot, url, image_url,
	category, enrichment_id`

func (s *offerStore) FindMatches(ctx context.Context, key model.OfferKey, statedValidTo *time.Time) ([]model.Offer, error) {
	query := `SELECT ` + offerColumns + `
		FROM offers
		WHERE source = ? AND type = ? AND duration = ? AND platform = ? AND title = ?`
	args := []any{key.Source, key.Type, key.Duration, key.Platform, key.Title}

	// A source that initially omitted the end date and later added one is
	// still the same offer, hence the IS NULL arm.
	if statedValidTo != nil {
		stated := normalize(*statedValidTo)
		query += ` AND (valid_to IS NULL OR (valid_to >= ? AND valid_to <= ?))`
		args = append(args, stated.Add(-storage.MatchTolerance), stated.Add(storage.MatchTolerance))
	}

	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query offer matches: %w", err)
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *offer)
	}
	return offers, rows.Err()
}

func (s *offerStore) Create(ctx context.Context, offer *model.Offer) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO offers (source, type, duration, platform, title,
			probable_game_name, seen_first, seen_last, valid_from, valid_to,
			raw_snapshot, url, image_url, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		offer.Source, offer.Type, offer.Duration, offer.Platform, offer.Title,
		offer.ProbableGameName,
		normalize(offer.SeenFirst), normalize(offer.SeenLast),
		normalizePtr(offer.ValidFrom), normalizePtr(offer.ValidTo),
		offer.RawSnapshot, offer.URL, offer.ImageURL, offer.Category,
	)
	if err != nil {
		return 0, fmt.Errorf("insert offer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("offer insert id: %w", err)
	}
	offer.ID = id
	return id, nil
}

func (s *offerStore) Fill(ctx context.Context, id int64, patch storage.OfferPatch, seenLast time.Time) error {
	// COALESCE keeps any already non-null value; fields are filled once and
	// never overwritten.
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers SET
			valid_from = COALESCE(valid_from, ?),
			valid_to   = COALESCE(valid_to, ?),
			url        = COALESCE(url, ?),
			image_url  = COALESCE(image_url, ?),
			seen_last  = max(seen_last, ?)
		WHERE id = ?`,
		normalizePtr(patch.ValidFrom), normalizePtr(patch.ValidTo),
		patch.URL, patch.ImageURL, normalize(seenLast), id,
	)
	if err != nil {
		return fmt.Errorf("fill offer %d: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *offerStore) Touch(ctx context.Context, id int64, seenLast time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET seen_last = max(seen_last, ?) WHERE id = ?`,
		normalize(seenLast), id,
	)
	if err != nil {
		return fmt.Errorf("touch offer %d: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *offerStore) Get(ctx context.Context, id int64) (*model.Offer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)
	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return offer, err
}

func (s *offerStore) ListAll(ctx context.Context) ([]model.Offer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *offer)
	}
	return offers, rows.Err()
}

func (s *offerStore) SetEnrichmentID(ctx context.Context, id int64, enrichmentID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET enrichment_id = ? WHERE id = ?`, enrichmentID, id)
	if err != nil {
		return fmt.Errorf("set enrichment id on offer %d: %w", id, err)
	}
	return requireRow(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*model.Offer, error) {
	var (
		o            model.Offer
		validFrom    sql.NullTime
		validTo      sql.NullTime
		url          sql.NullString
		imageURL     sql.NullString
		enrichmentID sql.NullInt64
	)

	err := row.Scan(&o.ID, &o.Source, &o.Type, &o.Duration, &o.Platform,
		&o.Title, &o.ProbableGameName, &o.SeenFirst, &o.SeenLast,
		&validFrom, &validTo, &o.RawSnapshot, &url, &imageURL,
		&o.Category, &enrichmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}

	if validFrom.Valid {
		t := validFrom.Time.UTC()
		o.ValidFrom = &t
	}
	if validTo.Valid {
		t := validTo.Time.UTC()
		o.ValidTo = &t
	}
	if url.Valid {
		o.URL = &url.String
	}
	if imageURL.Valid {
		o.ImageURL = &imageURL.String
	}
	if enrichmentID.Valid {
		o.EnrichmentID = &enrichmentID.Int64
	}
	o.SeenFirst = o.SeenFirst.UTC()
	o.SeenLast = o.SeenLast.UTC()

	return &o, nil
}

func normalizePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return normalize(*t)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("offer %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
