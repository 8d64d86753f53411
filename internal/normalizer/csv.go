// Package normalizer converts raw CSV log batches into canonical events.
//
// The expected column set is:
//
//	timestamp,level,action,username,ip,country,resource,user_agent,message
//
// Only timestamp is required. Rows with an empty or unparsable timestamp are
// skipped without failing the batch; every other field passes through as
// provided, defaulting to empty.
package normalizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/vigil-systems/vigil/internal/models"
)

// Result holds the outcome of normalizing one CSV batch.
type Result struct {
	Events  []models.LogEvent
	Skipped int
}

// timestampLayouts are tried in order. A trailing Z is equivalent to +00:00;
// offset-less timestamps are interpreted as UTC, and a bare date reads as
// midnight UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// Normalize consumes the CSV stream exactly once and returns the canonical
// events plus a count of skipped rows. A header row is required; reading
// stops with an error only if the header itself cannot be read.
func Normalize(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	res := &Result{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row; the rest of the batch still parses.
			res.Skipped++
			continue
		}

		raw := field(record, "timestamp")
		if raw == "" {
			res.Skipped++
			continue
		}

		ts, err := ParseTimestamp(raw)
		if err != nil {
			res.Skipped++
			continue
		}

		res.Events = append(res.Events, models.LogEvent{
			Timestamp: ts,
			RawTime:   raw,
			Level:     field(record, "level"),
			Action:    field(record, "action"),
			Username:  field(record, "username"),
			IP:        field(record, "ip"),
			Country:   field(record, "country"),
			Resource:  field(record, "resource"),
			UserAgent: field(record, "user_agent"),
			Message:   field(record, "message"),
		})
	}

	return res, nil
}
