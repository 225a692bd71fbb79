// Package simstate persists the paper account of the simulate platform.
package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/optibot/internal/domain"
)

const simulateSubdir = "simulate"

// Store persists simulator state per underlying so restarts keep cash and open positions.
type Store struct {
	path string
}

// NewStore creates a simulator state store under stateDir for the given underlying.
func NewStore(stateDir, symbol string) (*Store, error) {
	name := sanitizeScope(symbol)
	if name == "" {
		return nil, errors.New("symbol is required for simulate state")
	}

	dir := filepath.Join(stateDir, simulateSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	return &Store{path: filepath.Join(dir, fmt.Sprintf("%s.json", name))}, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// State represents all persisted simulator data.
type State struct {
	Cash      string           `json:"cash"`
	Positions []StoredPosition `json:"positions"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// StoredPosition is one paper fill.
type StoredPosition struct {
	CycleID      string            `json:"cycle_id"`
	OptionSymbol string            `json:"option_symbol"`
	Underlying   string            `json:"underlying"`
	Type         domain.OptionType `json:"type"`
	Strike       string            `json:"strike"`
	Expiration   time.Time         `json:"expiration"`
	Quantity     int64             `json:"quantity"`
	EntryPrice   string            `json:"entry_price"`
	Cost         string            `json:"cost"`
	OpenedAt     time.Time         `json:"opened_at"`
}

// CashDecimal decodes the stored cash balance.
func (st *State) CashDecimal() (decimal.Decimal, error) {
	cash, err := decimal.NewFromString(st.Cash)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "decode simulate cash")
	}
	return cash, nil
}

// NewStoredPosition converts a paper fill into its stored representation.
func NewStoredPosition(cycleID string, contract domain.OptionContract, quantity int64, unitPrice, cost decimal.Decimal, at time.Time) StoredPosition {
	return StoredPosition{
		CycleID:      cycleID,
		OptionSymbol: contract.Symbol,
		Underlying:   contract.Underlying,
		Type:         contract.Type,
		Strike:       contract.Strike.String(),
		Expiration:   contract.Expiration,
		Quantity:     quantity,
		EntryPrice:   unitPrice.String(),
		Cost:         cost.String(),
		OpenedAt:     at,
	}
}

// Load reads simulator state from disk. A missing or empty file yields nil state.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read simulate state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	return &state, nil
}

// Save writes simulator state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}

	return nil
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
