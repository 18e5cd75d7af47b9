// Package service holds the kitchen's business operations: the catalog,
// the capacity scheduler, the inventory ledger and the demand projector.
// Each service reaches the database through a narrow store interface built
// from a DBTX, so the same code runs against the pool or inside a
// transaction.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is what services need from *pgxpool.Pool: plain queries plus
// transactions with explicit options.
type Pool interface {
	database.DBTX
	TxBeginner
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decimalToNumeric is for money: two decimal places.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// quantityScale is the number of decimals stored for stock quantities,
// unit costs and purchase prices: a milligram of a KG ingredient.
const quantityScale = 6

// quantityToNumeric stores d at quantityScale, so 0.25 g of a KG
// ingredient stays 0.00025 kg.
func quantityToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.Round(quantityScale).String())
	return n
}

// fitsScale reports whether d has at most places decimals.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

func dateToPg(day time.Time) pgtype.Date {
	return pgtype.Date{Time: civilDay(day), Valid: true}
}

func pgToDate(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return civilDay(d.Time)
}

// civilDay drops the clock and zone of t, keeping its calendar date.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sortedIDs returns the distinct ids in ascending order.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
