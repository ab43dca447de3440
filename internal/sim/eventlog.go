package sim

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
)

const markTimeLayout = "2006-01-02 15:04:05.999999"

// eventLog appends simulation marks to a CSV file, one row per processed
// event, in the column layout downstream analysis expects.
type eventLog struct {
	f *os.File
	w *csv.Writer
}

func newEventLog(path string) (*eventLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sim.newEventLog: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"ID", "Time", "PnL", "Position", "AdjPnL", "SP_Price"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("sim.newEventLog: write header: %w", err)
	}
	return &eventLog{f: f, w: w}, nil
}

func (e *eventLog) append(id int, m domain.Mark) error {
	return e.w.Write([]string{
		strconv.Itoa(id),
		m.Time.Format(markTimeLayout),
		fmt.Sprintf("%.2f", m.PnL),
		strconv.Itoa(m.Position),
		fmt.Sprintf("%.2f", m.AdjPnL),
		fmt.Sprintf("%.2f", m.RefPrice),
	})
}

func (e *eventLog) Close() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		e.f.Close()
		return err
	}
	return e.f.Close()
}
