package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAdmission(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAdmission("review_draft", true, "")
	m.ObserveAdmission("review_draft", true, "")
	m.ObserveAdmission("review_draft", false, "actor-minute")

	allowed := testutil.ToFloat64(m.admissionsTotal.WithLabelValues("review_draft", "allowed", ""))
	if allowed != 2 {
		t.Errorf("Expected 2 allowed, got %v", allowed)
	}
	denied := testutil.ToFloat64(m.admissionsTotal.WithLabelValues("review_draft", "denied", "actor-minute"))
	if denied != 1 {
		t.Errorf("Expected 1 denied, got %v", denied)
	}
}

func TestObserveGeneration(t *testing.T) {
	m := New(nil)

	m.ObserveGeneration("skill_summary", "claude-haiku-4-5", true, 800*time.Millisecond, 500)
	m.ObserveGeneration("skill_summary", "claude-haiku-4-5", false, 100*time.Millisecond, 0)

	success := testutil.ToFloat64(m.generationsTotal.WithLabelValues("skill_summary", "claude-haiku-4-5", "success"))
	if success != 1 {
		t.Errorf("Expected 1 success, got %v", success)
	}
	failure := testutil.ToFloat64(m.generationsTotal.WithLabelValues("skill_summary", "claude-haiku-4-5", "error"))
	if failure != 1 {
		t.Errorf("Expected 1 error, got %v", failure)
	}
	tokens := testutil.ToFloat64(m.tokensTotal.WithLabelValues("skill_summary", "claude-haiku-4-5"))
	if tokens != 500 {
		t.Errorf("Expected 500 tokens, got %v", tokens)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New(nil)
	m.ObserveAdmission("goal_coach", false, "group-daily-tokens")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("Failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "strengthsync_ai_admissions_total") {
		t.Errorf("Expected admissions metric in exposition, got:\n%s", body)
	}
}
