package service

import (
	"context"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
)

// stubAuditWriter collects audit entries written by services under test.
type stubAuditWriter struct {
	entries []*models.AuditLog
	err     error
}

func (s *stubAuditWriter) Create(ctx context.Context, entry *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}
