// Package feed reads recorded exchange events back as the internal event
// stream. The replay file is the CSV produced by the capture pipeline:
// one row per event, already converted from the yes/no wire protocol to
// bid/ask book prices.
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

// Replay file columns. Older captures carry extra columns (Competitor,
// OrderId, Lifespan, Fee); we resolve positions from the header and
// ignore the rest.
const (
	colTime       = "Time"
	colOperation  = "Operation"
	colInstrument = "Instrument"
	colSide       = "Side"
	colVolume     = "Volume"
	colPrice      = "Price"
)

// Instrument discriminator in the replay schema.
const (
	instrumentReference = 0 // underlying index price update
	instrumentBook      = 1 // order book event
)

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// Replay is a ports.EventFeed over a replay CSV. Malformed rows are
// skipped with a warning; only I/O errors and a broken header are fatal.
type Replay struct {
	f    *os.File
	r    *csv.Reader
	cols map[string]int
	line int
}

// OpenReplay opens path and validates its header.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed.OpenReplay: %w", err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // older captures have ragged rows

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("feed.OpenReplay: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colTime, colOperation, colInstrument, colSide, colVolume, colPrice} {
		if _, ok := cols[required]; !ok {
			f.Close()
			return nil, fmt.Errorf("feed.OpenReplay: missing column %q", required)
		}
	}

	return &Replay{f: f, r: r, cols: cols, line: 1}, nil
}

// Next returns the next well-formed event, io.EOF at end of file.
func (rp *Replay) Next(ctx context.Context) (domain.MarketEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.MarketEvent{}, err
		}

		record, err := rp.r.Read()
		if err == io.EOF {
			return domain.MarketEvent{}, io.EOF
		}
		rp.line++
		if err != nil {
			slog.Warn("replay: skipping unreadable row", "line", rp.line, "err", err)
			continue
		}

		ev, err := rp.parse(record)
		if err != nil {
			slog.Warn("replay: skipping malformed row", "line", rp.line, "err", err)
			continue
		}
		return ev, nil
	}
}

// Close releases the underlying file.
func (rp *Replay) Close() error {
	return rp.f.Close()
}

func (rp *Replay) field(record []string, name string) (string, error) {
	idx := rp.cols[name]
	if idx >= len(record) {
		return "", fmt.Errorf("row too short for column %s", name)
	}
	return strings.TrimSpace(record[idx]), nil
}

func (rp *Replay) parse(record []string) (domain.MarketEvent, error) {
	rawTime, err := rp.field(record, colTime)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	ts, err := parseTime(rawTime)
	if err != nil {
		return domain.MarketEvent{}, err
	}

	rawInstrument, err := rp.field(record, colInstrument)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	instrument, err := strconv.Atoi(rawInstrument)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("instrument %q: %w", rawInstrument, err)
	}

	rawPrice, err := rp.field(record, colPrice)
	if err != nil {
		return domain.MarketEvent{}, err
	}

	switch instrument {
	case instrumentReference:
		price, err := strconv.ParseFloat(rawPrice, 64)
		if err != nil {
			return domain.MarketEvent{}, fmt.Errorf("reference price %q: %w", rawPrice, err)
		}
		return domain.MarketEvent{Time: ts, Reference: &domain.ReferenceEvent{Price: price}}, nil

	case instrumentBook:
		return rp.parseBookRow(record, ts, rawPrice)

	default:
		return domain.MarketEvent{}, fmt.Errorf("unknown instrument %d", instrument)
	}
}

func (rp *Replay) parseBookRow(record []string, ts time.Time, rawPrice string) (domain.MarketEvent, error) {
	rawOp, err := rp.field(record, colOperation)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	var op domain.Operation
	switch rawOp {
	case "Insert":
		op = domain.Insert
	case "Cancel":
		op = domain.Cancel
	default:
		return domain.MarketEvent{}, fmt.Errorf("unknown operation %q", rawOp)
	}

	rawSide, err := rp.field(record, colSide)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	var side domain.Side
	switch rawSide {
	case "B":
		side = domain.Bid
	case "A":
		side = domain.Ask
	default:
		return domain.MarketEvent{}, fmt.Errorf("unknown side %q", rawSide)
	}

	rawVolume, err := rp.field(record, colVolume)
	if err != nil {
		return domain.MarketEvent{}, err
	}
	volume, err := strconv.Atoi(rawVolume)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("volume %q: %w", rawVolume, err)
	}
	if volume <= 0 {
		return domain.MarketEvent{}, fmt.Errorf("non-positive volume %d", volume)
	}

	// Book rows carry price as contract cents × 100.
	rawCents, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("book price %q: %w", rawPrice, err)
	}
	price := int(rawCents / 100)
	if !domain.ValidPrice(price) {
		return domain.MarketEvent{}, fmt.Errorf("price %d outside [%d,%d]", price, domain.MinPrice, domain.MaxPrice)
	}

	return domain.MarketEvent{
		Time: ts,
		Delta: &domain.DeltaEvent{
			Op:    op,
			Side:  side,
			Price: price,
			Qty:   volume,
		},
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
