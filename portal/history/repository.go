package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "history").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "history").Logger()
}

// Entry is one recorded transfer execution.
type Entry struct {
	ID           int64           `json:"id"`
	Origin       string          `json:"origin"`
	Exchange     json.RawMessage `json:"exchange"`
	Destination  string          `json:"destination"`
	CurrencyFrom json.RawMessage `json:"currencyFrom"`
	CurrencyTo   json.RawMessage `json:"currencyTo"`
	Amount       decimal.Decimal `json:"amount"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	State        string          `json:"state"`
	Reason       string          `json:"reason,omitempty"`
	Error        string          `json:"error,omitempty"`
	Steps        int             `json:"steps"`
	StartedAt    time.Time       `json:"startedAt"`
	Duration     time.Duration   `json:"duration"`
}

// NewEntry flattens a settled execution into a row.
func NewEntry(outcome transfer.Outcome) (Entry, error) {
	req := outcome.Request
	if req == nil {
		return Entry{}, fmt.Errorf("outcome has no request")
	}

	exchange, err := json.Marshal(req.Venue)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding exchange: %w", err)
	}
	from, err := json.Marshal(req.CurrencyFrom)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding currencyFrom: %w", err)
	}
	to, err := json.Marshal(req.CurrencyTo)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding currencyTo: %w", err)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing amount: %w", err)
	}

	entry := Entry{
		Origin:       req.Origin.String(),
		Exchange:     exchange,
		Destination:  req.Destination.String(),
		CurrencyFrom: from,
		CurrencyTo:   to,
		Amount:       amount,
		Sender:       req.SenderAddress,
		Recipient:    req.RecipientAddress,
		State:        outcome.State.String(),
		Reason:       string(outcome.Reason),
		Steps:        outcome.Steps,
		StartedAt:    outcome.StartedAt,
		Duration:     outcome.Duration,
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	return entry, nil
}

// PgRepository stores transfer executions in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

var _ transfer.Recorder = (*PgRepository)(nil)

// NewPgRepository creates a new PostgreSQL history repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Record inserts a settled execution.
func (r *PgRepository) Record(ctx context.Context, outcome transfer.Outcome) error {
	e, err := NewEntry(outcome)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO transfers (origin, exchange, destination, currency_from, currency_to, amount,
		                        sender, recipient, state, reason, error, steps, started_at, duration_ms)
		 VALUES ($1, $2::jsonb, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.Origin, string(e.Exchange), e.Destination, string(e.CurrencyFrom), string(e.CurrencyTo), e.Amount.String(),
		e.Sender, e.Recipient, e.State, e.Reason, e.Error, e.Steps, e.StartedAt, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("saving transfer: %w", err)
	}
	return nil
}

// ListBySender returns the latest executions of sender, newest first.
func (r *PgRepository) ListBySender(ctx context.Context, sender string, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, origin, exchange, destination, currency_from, currency_to, amount::text,
		        sender, recipient, state, reason, error, steps, started_at, duration_ms
		 FROM transfers
		 WHERE sender = $1
		 ORDER BY started_at DESC
		 LIMIT $2`, sender, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			amount     string
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &e.Origin, &e.Exchange, &e.Destination, &e.CurrencyFrom, &e.CurrencyTo, &amount,
			&e.Sender, &e.Recipient, &e.State, &e.Reason, &e.Error, &e.Steps, &e.StartedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transfers: %w", err)
	}
	return entries, nil
}
