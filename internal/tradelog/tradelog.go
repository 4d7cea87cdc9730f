// Package tradelog reads and appends the bot's completed-trade log: one JSON
// record per line, append-only, shared with outside tooling. The reader is
// deliberately forgiving because other processes write to the same file.
package tradelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// RecordTypeClose is the record-type discriminator for a completed trade.
const RecordTypeClose = "trade_close"

// Close is one completed-trade record. PnLPct drives the adaptive
// threshold; PnLUSD is a fallback signal when the percentage is absent.
type Close struct {
	Type     string   `json:"type"`
	Symbol   string   `json:"symbol"`
	Strategy string   `json:"strategy,omitempty"`
	PnLPct   *float64 `json:"pnl_pct,omitempty"`
	PnLUSD   *float64 `json:"pnl_usd,omitempty"`
	ClosedAt string   `json:"closed_at"`
}

// IsLoss reports whether this trade realized a strictly negative PnL.
// Breakeven (exactly zero) counts as not-a-loss and therefore breaks a
// losing streak. Records with no PnL signal at all count as not-a-loss.
func (c Close) IsLoss() bool {
	if c.PnLPct != nil {
		return *c.PnLPct < 0
	}
	if c.PnLUSD != nil {
		return *c.PnLUSD < 0
	}
	return false
}

// Log is an append-only NDJSON trade log at a fixed path.
type Log struct {
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

// AppendClose appends one completed-trade record. Used by the hosting bot
// when a position exits; tests use it to build histories.
func (l *Log) AppendClose(c Close) error {
	c.Type = RecordTypeClose
	if c.ClosedAt == "" {
		c.ClosedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Tail returns up to n of the most recent completed-trade records, oldest
// first. Malformed lines and records of other types are skipped, never
// fatal. A missing file reads as an empty history.
func (l *Log) Tail(n int) ([]Close, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var closes []Close
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Close
		if err := json.Unmarshal(line, &c); err != nil {
			continue // foreign or corrupt line
		}
		if c.Type != RecordTypeClose {
			continue
		}
		closes = append(closes, c)
	}
	if err := scanner.Err(); err != nil {
		return closes, err
	}

	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	return closes, nil
}
