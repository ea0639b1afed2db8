package settlement

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Scanner pages through a region store for submissions that are approved,
// unsettled, and past the grace window. Keyset pagination on
// (approved_at, id): settled rows leave the predicate between pages, so
// offset paging would skip items.
type Scanner struct {
	db       *gorm.DB
	pageSize int
}

func NewScanner(db *gorm.DB, pageSize int) *Scanner {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Scanner{db: db, pageSize: pageSize}
}

// Eligible returns the next page of eligible submissions strictly after
// the cursor, oldest approval first. A nil cursor starts from the
// beginning. An empty result means the scan is complete.
func (s *Scanner) Eligible(ctx context.Context, cutoff time.Time, cursor *Submission) ([]Submission, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", SubmissionApproved).
		Where("settled_at IS NULL").
		Where("approved_at IS NOT NULL").
		Where("approved_at <= ?", cutoff)

	if cursor != nil {
		q = q.Where("(approved_at > ?) OR (approved_at = ? AND id > ?)",
			cursor.ApprovedAt, cursor.ApprovedAt, cursor.ID)
	}

	var page []Submission
	if err := q.Order("approved_at ASC, id ASC").Limit(s.pageSize).Find(&page).Error; err != nil {
		return nil, err
	}
	return page, nil
}

// ForEach walks every eligible submission page by page and invokes fn per
// submission. fn errors do not stop the walk; the caller isolates them.
// Only a storage error aborts the scan.
func (s *Scanner) ForEach(ctx context.Context, cutoff time.Time, fn func(sub Submission)) error {
	var cursor *Submission
	for {
		page, err := s.Eligible(ctx, cutoff, cursor)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			fn(page[i])
		}
		last := page[len(page)-1]
		cursor = &last
	}
}
