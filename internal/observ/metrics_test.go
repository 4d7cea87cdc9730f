package observ

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecordDurationShowsUpInHandlerDump(t *testing.T) {
	RecordDuration("test_pass", 250*time.Millisecond, map[string]string{"outcome": "ok"})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	var dump struct {
		Hist map[string]map[string][]float64 `json:"histograms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dump); err != nil {
		t.Fatalf("metrics dump is not JSON: %v", err)
	}

	series, ok := dump.Hist["test_pass_ms"]
	if !ok {
		t.Fatalf("test_pass_ms missing from histogram dump: %v", dump.Hist)
	}
	for _, samples := range series {
		for _, v := range samples {
			if v == 250 {
				return
			}
		}
	}
	t.Errorf("expected a 250ms sample in %v", series)
}
