package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(LoginAttemptsTotal.WithLabelValues("success"))
	LoginAttemptsTotal.WithLabelValues("success").Inc()
	if got := testutil.ToFloat64(LoginAttemptsTotal.WithLabelValues("success")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(SecondFactorTotal.WithLabelValues("backup", "failure"))
	SecondFactorTotal.WithLabelValues("backup", "failure").Inc()
	if got := testutil.ToFloat64(SecondFactorTotal.WithLabelValues("backup", "failure")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
