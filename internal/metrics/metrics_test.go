package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・指定ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegister_Panics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DoubleRegister_Panics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

// TestRecordChatRequest_IncrementsCounter はエンドポイント・結果別にカウントされることを検証する。
func TestRecordChatRequest_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordChatRequest("chatbot", "dispatched")
	c.RecordChatRequest("chatbot", "dispatched")
	c.RecordChatRequest("chatbot", "greeted")

	m := findMetric(t, reg, "chatgate_chat_requests_total", map[string]string{"endpoint": "chatbot", "outcome": "dispatched"})
	if m == nil {
		t.Fatal("chatgate_chat_requests_total{outcome=dispatched} not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("dispatched = %v, want 2", v)
	}

	m = findMetric(t, reg, "chatgate_chat_requests_total", map[string]string{"endpoint": "chatbot", "outcome": "greeted"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("greeted counter should be 1")
	}
}

// TestRecordCompletionLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordCompletionLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCompletionLatency("pirate", 250*time.Millisecond)
	c.RecordCompletionLatency("pirate", 750*time.Millisecond)

	m := findMetric(t, reg, "chatgate_completion_latency_seconds", map[string]string{"persona": "pirate"})
	if m == nil {
		t.Fatal("chatgate_completion_latency_seconds not found")
	}
	h := m.GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.0 {
		t.Errorf("sample_sum = %v, want 1.0", h.GetSampleSum())
	}
}

// TestRecordCompletionFailure_LabelsKind は失敗種別がラベルとして記録されることを検証する。
func TestRecordCompletionFailure_LabelsKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCompletionFailure("banking", "rejected")

	m := findMetric(t, reg, "chatgate_completion_failures_total", map[string]string{"persona": "banking", "kind": "rejected"})
	if m == nil {
		t.Fatal("chatgate_completion_failures_total not found")
	}
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("failures = %v, want 1", v)
	}
}

// TestRecordVerificationEmail_SentAndFailed は送信成功・失敗が区別されることを検証する。
func TestRecordVerificationEmail_SentAndFailed(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerificationEmail(true)
	c.RecordVerificationEmail(false)
	c.RecordVerificationEmail(false)

	sent := findMetric(t, reg, "chatgate_verification_emails_total", map[string]string{"result": "sent"})
	failed := findMetric(t, reg, "chatgate_verification_emails_total", map[string]string{"result": "failed"})
	if sent == nil || sent.GetCounter().GetValue() != 1 {
		t.Error("sent counter should be 1")
	}
	if failed == nil || failed.GetCounter().GetValue() != 2 {
		t.Error("failed counter should be 2")
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordChatRequest("monkeyisland", "dispatched")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "chatgate_chat_requests_total") {
		t.Error("response should contain chatgate_chat_requests_total metric")
	}
}

// TestNop_DoesNotPanic はNopが何もせずに呼び出せることを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordChatRequest("chatbot", "dispatched")
	c.RecordCompletionLatency("pirate", time.Second)
	c.RecordCompletionFailure("pirate", "unavailable")
	c.RecordVerificationEmail(true)
}
