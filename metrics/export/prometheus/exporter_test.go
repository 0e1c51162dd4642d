package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/deskauth"
)

type fakeSource struct {
	snapshot deskauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() deskauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{snapshot: deskauth.MetricsSnapshot{
		Counters:   map[deskauth.MetricID]uint64{},
		Histograms: map[deskauth.MetricID][]uint64{},
	}})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: deskauth.MetricsSnapshot{
			Counters: map[deskauth.MetricID]uint64{
				deskauth.MetricLoginSuccess:         7,
				deskauth.MetricLoginCaptchaRequired: 2,
			},
			Histograms: map[deskauth.MetricID][]uint64{
				deskauth.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"deskauth_login_success_total 7",
		"deskauth_login_captcha_required_total 2",
		"deskauth_refresh_failure_total 0",
		`deskauth_authenticate_latency_seconds_bucket{le="0.005"} 1`,
		`deskauth_authenticate_latency_seconds_bucket{le="+Inf"} 36`,
		"deskauth_authenticate_latency_seconds_count 36",
		"deskauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := New(fakeSource{snapshot: deskauth.MetricsSnapshot{
		Counters:   map[deskauth.MetricID]uint64{deskauth.MetricLogout: 1},
		Histograms: map[deskauth.MetricID][]uint64{},
	}})

	if out := exp.Render(); strings.Contains(out, "latency") {
		t.Fatalf("histogram rendered without samples:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{snapshot: deskauth.MetricsSnapshot{
		Counters:   map[deskauth.MetricID]uint64{deskauth.MetricLoginSuccess: 1},
		Histograms: map[deskauth.MetricID][]uint64{},
	}})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderFromEngine(t *testing.T) {
	m := deskauth.NewMetrics(deskauth.MetricsConfig{Enabled: true})
	m.Inc(deskauth.MetricRegisterSuccess)
	m.Inc(deskauth.MetricRegisterSuccess)

	out := New(metricsOnly{m}).Render()
	if !strings.Contains(out, "deskauth_register_success_total 2") {
		t.Fatalf("expected register counter, got:\n%s", out)
	}
}

type metricsOnly struct{ m *deskauth.Metrics }

func (s metricsOnly) MetricsSnapshot() deskauth.MetricsSnapshot { return s.m.Snapshot() }
func (s metricsOnly) AuditDropped() uint64                      { return 0 }

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{snapshot: deskauth.MetricsSnapshot{
		Counters: map[deskauth.MetricID]uint64{
			deskauth.MetricLoginSuccess:   1000,
			deskauth.MetricLoginFailure:   40,
			deskauth.MetricRefreshSuccess: 800,
			deskauth.MetricRefreshFailure: 10,
		},
		Histograms: map[deskauth.MetricID][]uint64{
			deskauth.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
