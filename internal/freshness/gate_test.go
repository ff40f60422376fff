package freshness

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"validator-queue-etl/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestGate(opts ...GateOption) *Gate {
	opts = append([]GateOption{WithClock(fixedClock)}, opts...)
	return NewGate(zap.NewNop(), opts...)
}

func tableWithDates(col string, values ...any) *domain.Table {
	table := domain.NewTable()
	for _, v := range values {
		table.Append([]string{col}, domain.Record{col: v})
	}
	return table
}

func TestVerify_SkippedWithoutDateColumn(t *testing.T) {
	table := domain.NewTable()
	table.Append([]string{"validators"}, domain.Record{"validators": "100"})

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Skipped {
		t.Errorf("Expected Skipped, got %v", outcome.Kind)
	}
	if outcome.Reason != "no date column" {
		t.Errorf("Expected reason %q, got %q", "no date column", outcome.Reason)
	}
}

func TestVerify_PassWithinWindow(t *testing.T) {
	table := tableWithDates("date", "2025-06-10", "2025-06-12")

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Pass {
		t.Errorf("Expected Pass, got %v", outcome.Kind)
	}
	wantLatest := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	if !outcome.Latest.Equal(wantLatest) {
		t.Errorf("Expected latest %v, got %v", wantLatest, outcome.Latest)
	}
}

func TestVerify_StaleBeyondWindow(t *testing.T) {
	table := tableWithDates("date", "2024-01-01", "2024-02-01")

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Stale {
		t.Errorf("Expected Stale, got %v", outcome.Kind)
	}
	wantThreshold := testNow.Add(-DefaultWindow)
	if !outcome.Threshold.Equal(wantThreshold) {
		t.Errorf("Expected threshold %v, got %v", wantThreshold, outcome.Threshold)
	}
}

func TestVerify_ExactThresholdIsNotStale(t *testing.T) {
	threshold := testNow.Add(-DefaultWindow)
	table := tableWithDates("timestamp", threshold.Format(time.RFC3339))

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Pass {
		t.Errorf("Staleness is strict-before; expected Pass at the threshold, got %v", outcome.Kind)
	}
}

func TestVerify_PrefersTimestampOverDate(t *testing.T) {
	// timestamp is fresh, date is ancient; timestamp must win.
	table := domain.NewTable()
	table.Append([]string{"timestamp", "date"}, domain.Record{
		"timestamp": "2025-06-14T08:00:00Z",
		"date":      "2020-01-01",
	})

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Pass {
		t.Errorf("Expected Pass via timestamp column, got %v", outcome.Kind)
	}
}

func TestVerify_UnparseableValuesIgnored(t *testing.T) {
	table := tableWithDates("date", "not-a-date", "2025-06-14", nil)

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Pass {
		t.Errorf("Expected Pass, got %v", outcome.Kind)
	}
}

func TestVerify_AllUnparseableIsFatal(t *testing.T) {
	table := tableWithDates("date", "not-a-date", "also-bad", nil)

	_, err := newTestGate().Verify(table)
	if !errors.Is(err, ErrNoUsableDate) {
		t.Errorf("Expected ErrNoUsableDate, got %v", err)
	}
}

func TestVerify_NaiveDatetimeTreatedAsUTC(t *testing.T) {
	// One hour inside the window when read as UTC; a local-zone
	// reinterpretation east of UTC would flip it to stale.
	naive := testNow.Add(-DefaultWindow + time.Hour).Format("2006-01-02 15:04:05")
	table := tableWithDates("timestamp", naive)

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Pass {
		t.Errorf("Expected Pass for naive UTC value, got %v", outcome.Kind)
	}
}

func TestVerify_UnixTimestampNumbers(t *testing.T) {
	fresh := testNow.Add(-24 * time.Hour).Unix()
	table := tableWithDates("timestamp", json.Number(fmtInt(fresh)))

	outcome, err := newTestGate().Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Pass {
		t.Errorf("Expected Pass, got %v", outcome.Kind)
	}
}

func TestVerify_CustomWindow(t *testing.T) {
	table := tableWithDates("date", testNow.Add(-48*time.Hour).Format("2006-01-02"))

	outcome, err := newTestGate(WithWindow(24 * time.Hour)).Verify(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Kind != Stale {
		t.Errorf("Expected Stale with 24h window, got %v", outcome.Kind)
	}
}

func fmtInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
