package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormStore implements Store over a GORM connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a GORM connection in the Store capability.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// apply translates q into a GORM query builder.
func (s *GormStore) apply(ctx context.Context, q Query) (*gorm.DB, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("store: collection is required")
	}
	tx := s.db.WithContext(ctx).Table(q.Collection)
	for _, c := range q.Where {
		tx = tx.Where(fmt.Sprintf("%s = ?", c.Field), c.Value)
	}
	if p := q.Pair; p != nil {
		tx = tx.Where(
			fmt.Sprintf("(%s = ? AND %s = ?) OR (%s = ? AND %s = ?)",
				p.SenderField, p.ReceiverField, p.SenderField, p.ReceiverField),
			p.A, p.B, p.B, p.A,
		)
	}
	if o := q.OrderBy; o != nil {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", o.Field, dir))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx, nil
}

// Read executes q and scans matching rows into dest.
func (s *GormStore) Read(ctx context.Context, q Query, dest any) error {
	tx, err := s.apply(ctx, q)
	if err != nil {
		return err
	}
	if err := tx.Find(dest).Error; err != nil {
		return NewSourceError(q.Collection, err)
	}
	return nil
}

// Count returns the number of rows matching q.
func (s *GormStore) Count(ctx context.Context, q Query) (int64, error) {
	tx, err := s.apply(ctx, q)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, NewSourceError(q.Collection, err)
	}
	return count, nil
}

// insertAttempts bounds sequence-collision retries on insert.
const insertAttempts = 3

// Insert creates row. Model hooks assign identity and insert sequence,
// and GORM fills CreatedAt, so the passed row comes back authoritative.
// A concurrent insert can race the sequence computation onto the same
// value; the unique index rejects one of them and that insert is retried
// with a recomputed sequence.
func (s *GormStore) Insert(ctx context.Context, collection string, row any) error {
	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		err = s.db.WithContext(ctx).Create(row).Error
		if err == nil {
			return nil
		}
		seq, ok := row.(interface{ ResetSeq() })
		if !ok || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		seq.ResetSeq()
	}
	return NewSourceError(collection, err)
}

// Update applies patch to the row with the given id. Updating a missing
// row is an error; the caller holds a stale identity.
func (s *GormStore) Update(ctx context.Context, collection string, id string, patch map[string]any) error {
	result := s.db.WithContext(ctx).Table(collection).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return NewSourceError(collection, result.Error)
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows for an update that changes
		// nothing; that must stay a successful (idempotent) write.
		var count int64
		if err := s.db.WithContext(ctx).Table(collection).Where("id = ?", id).Count(&count).Error; err != nil {
			return NewSourceError(collection, err)
		}
		if count == 0 {
			return NewSourceError(collection, fmt.Errorf("row not found: %s", id))
		}
	}
	return nil
}
