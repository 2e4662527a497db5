// Package memory is a TransactionSource backed by an in-process map,
// optionally seeded from a CSV file.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/devintruefi/91825truefi-sub000/internal/core"
	"github.com/devintruefi/91825truefi-sub000/internal/detection"
)

// SeedFile is the file name looked up in the detection data directory.
const SeedFile = "transactions.csv"

var csvHeader = []string{"user_id", "date", "description", "amount", "category", "account"}

type Source struct {
	mu     sync.RWMutex
	byUser map[string][]core.Transaction
}

var _ detection.TransactionSource = (*Source)(nil)

func New() *Source {
	return &Source{byUser: make(map[string][]core.Transaction)}
}

// NewFromFile loads a CSV seed. A missing file yields an empty source.
func NewFromFile(path string) (*Source, error) {
	s := New()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open transactions seed: %w", err)
	}
	defer f.Close()

	if err := s.LoadCSV(f); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

func (s *Source) Add(userID string, txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = append(s.byUser[userID], txs...)
}

// LoadCSV reads rows of user_id,date,description,amount,category,account.
// The header row is required. Dates are YYYY-MM-DD; negative amounts are
// outflows.
func (s *Source) LoadCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i, want := range csvHeader[:4] {
		if i >= len(header) || !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("unexpected header %v: want %v", header, csvHeader)
		}
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		userID, tx, err := parseRecord(rec)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		s.Add(userID, tx)
	}
}

func parseRecord(rec []string) (string, core.Transaction, error) {
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	userID := field(0)
	if userID == "" {
		return "", core.Transaction{}, errors.New("missing user_id")
	}
	date, err := time.Parse("2006-01-02", field(1))
	if err != nil {
		return "", core.Transaction{}, fmt.Errorf("invalid date %q", field(1))
	}
	amount, err := core.ParseSignedAmount(field(3))
	if err != nil {
		return "", core.Transaction{}, fmt.Errorf("invalid amount %q: %w", field(3), err)
	}
	tx := core.Transaction{
		Date:        core.Date{Time: date},
		Description: field(2),
		Amount:      amount,
		Category:    field(4),
		Account:     field(5),
	}
	if err := tx.Validate(); err != nil {
		return "", core.Transaction{}, err
	}
	return userID, tx, nil
}

func (s *Source) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byUser[userID]), nil
}
