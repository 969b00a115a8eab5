// Package registrants is the registrant store: the spreadsheet when it is
// reachable, the published CSV plus a local pending cache when it is not.
package registrants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tournament-bot/internal/cache"
	"tournament-bot/internal/models"
)

const (
	SourceSheets = "Google Sheets API"
	SourceCSV    = "CSV + Local Cache"
)

// Remote is the writable spreadsheet.
type Remote interface {
	AppendRegistrant(ctx context.Context, r models.Registrant) error
	ListRegistrants(ctx context.Context) ([]models.Registrant, error)
	ClearRegistrants(ctx context.Context) error
}

// Reader is the read-only published copy.
type Reader interface {
	ListRegistrants(ctx context.Context) ([]models.Registrant, error)
}

// Pending holds rows that have not reached the spreadsheet yet.
type Pending interface {
	Append(r models.Registrant) error
	List() ([]cache.Entry, error)
	Delete(seqs ...uint64) error
	Clear() error
}

type Service struct {
	// writeMu orders Append, Clear and Flush so a flush in progress cannot
	// re-add rows that a clear has already removed.
	writeMu sync.Mutex

	remote  Remote
	csv     Reader
	pending Pending
	logger  *slog.Logger
}

// New wires the store. remote and csv may be nil; pending may not.
func New(remote Remote, csv Reader, pending Pending, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{remote: remote, csv: csv, pending: pending, logger: logger}
}

func (s *Service) DataSource() string {
	if s.remote != nil {
		return SourceSheets
	}
	return SourceCSV
}

// Append writes to the spreadsheet, falling back to the pending cache. It
// only fails when neither accepted the row.
func (s *Service) Append(ctx context.Context, r models.Registrant) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.remote != nil {
		err := s.remote.AppendRegistrant(ctx, r)
		if err == nil {
			s.logger.Info("registrant appended", "source", SourceSheets, "account_id", r.AccountID, "nickname", r.Nickname)
			return nil
		}
		s.logger.Warn("sheet append failed, caching locally", "account_id", r.AccountID, "error", err)
	}
	if err := s.pending.Append(r); err != nil {
		return fmt.Errorf("cache registrant: %w", err)
	}
	s.logger.Info("registrant cached", "account_id", r.AccountID, "nickname", r.Nickname)
	return nil
}

// List returns stored rows followed by pending ones. A failing remote read
// is logged and treated as empty, matching the CSV fallback.
func (s *Service) List(ctx context.Context) ([]models.Registrant, error) {
	var out []models.Registrant
	switch {
	case s.remote != nil:
		rows, err := s.remote.ListRegistrants(ctx)
		if err != nil {
			s.logger.Error("reading sheet failed", "error", err)
		}
		out = append(out, rows...)
	case s.csv != nil:
		rows, err := s.csv.ListRegistrants(ctx)
		if err != nil {
			s.logger.Error("reading csv failed", "error", err)
		}
		out = append(out, rows...)
	}

	entries, err := s.pending.List()
	if err != nil {
		return out, fmt.Errorf("list pending: %w", err)
	}
	for _, e := range entries {
		out = append(out, e.Registrant)
	}
	if out == nil {
		out = []models.Registrant{}
	}
	return out, nil
}

// Has reports whether the account already has a row.
func (s *Service) Has(ctx context.Context, accountID int64) (bool, error) {
	list, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range list {
		if r.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

// Clear empties the spreadsheet and the pending cache.
func (s *Service) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var errs []error
	if s.remote != nil {
		if err := s.remote.ClearRegistrants(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.pending.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("clear pending: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("registrants cleared", "source", s.DataSource())
	return nil
}

// Flush pushes pending rows to the spreadsheet in order and stops at the
// first failure. It returns how many rows were moved.
func (s *Service) Flush(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	entries, err := s.pending.List()
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	moved := 0
	for _, e := range entries {
		if err := s.remote.AppendRegistrant(ctx, e.Registrant); err != nil {
			return moved, err
		}
		if err := s.pending.Delete(e.Seq); err != nil {
			return moved, fmt.Errorf("delete pending %d: %w", e.Seq, err)
		}
		moved++
	}
	if moved > 0 {
		s.logger.Info("pending registrants flushed", "count", moved)
	}
	return moved, nil
}
