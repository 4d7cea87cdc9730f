package doctor

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mlevitan96-crypto/stock-bot-sub007/internal/observ"
)

// Audit appends one NDJSON record per remediation event. The sink is a
// lumberjack writer so the audit trail itself stays size-bounded without
// the doctor having to truncate its own log.
type Audit struct {
	mu sync.Mutex
	w  io.Writer
}

func NewAudit(path string, maxSizeMB int) *Audit {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &Audit{w: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
	}}
}

// newAuditWriter is the test seam: any io.Writer sink.
func newAuditWriter(w io.Writer) *Audit {
	return &Audit{w: w}
}

// Record writes one event. Auditing must never fail a remediation pass, so
// errors are logged and swallowed.
func (a *Audit) Record(event string, fields map[string]any) {
	rec := map[string]any{
		"event": event,
		"id":    uuid.NewString(),
	}
	for k, v := range fields {
		rec[k] = v
	}
	now := time.Now().UTC()
	rec["_ts"] = now.Unix()
	rec["_dt"] = now.Format(time.RFC3339)

	data, err := json.Marshal(rec)
	if err != nil {
		observ.LogError("doctor_audit_marshal_failed", err, map[string]any{"audit_event": event})
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.w.Write(append(data, '\n')); err != nil {
		observ.LogError("doctor_audit_write_failed", err, map[string]any{"audit_event": event})
	}
}
