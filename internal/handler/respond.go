// Package handler exposes the kitchen services over HTTP. Decimal amounts
// travel as strings, dates as YYYY-MM-DD.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/donana/kitchen-api/internal/ws"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// quantityPlaces matches the scale of stored quantities and unit costs.
const quantityPlaces = 6

// Publisher pushes events to websocket subscribers. Satisfied by *ws.Hub.
type Publisher interface {
	Broadcast(topic string, event ws.Event)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus pairs a service error with the status it maps to.
type errorStatus struct {
	err    error
	status int
}

// writeServiceError maps err through table. Errors not in the table are
// logged and answered with 500.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, op string, err error, table []errorStatus) {
	for _, e := range table {
		if errors.Is(err, e.err) {
			writeError(w, e.status, err.Error())
			return
		}
	}
	log.WithError(err).Error(op)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decimalFromNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(val.(string))
}

func numericString(n pgtype.Numeric, places int32) string {
	d, err := decimalFromNumeric(n)
	if err != nil {
		return decimal.Zero.StringFixed(places)
	}
	return d.StringFixed(places)
}

// quantityString renders a stock or recipe quantity without trailing zeros.
func quantityString(n pgtype.Numeric) string {
	d, err := decimalFromNumeric(n)
	if err != nil {
		return "0"
	}
	return d.String()
}

func dateString(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

func timestampPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// queryInt reads a non-negative integer query parameter, returning fallback
// when absent.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}
