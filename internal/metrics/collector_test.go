package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordCompilation(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordCompilation(1, ResultOK, 5*time.Millisecond, 2)
	c.RecordCompilation(1, ResultOK, 7*time.Millisecond, 0)
	c.RecordCompilation(1, ResultCached, 0, 0)
	c.RecordCompilation(2, ResultError, time.Millisecond, 0)

	if got := testutil.ToFloat64(c.compilations.WithLabelValues("1", ResultOK)); got != 2 {
		t.Fatalf("ok compilations: %v", got)
	}
	if got := testutil.ToFloat64(c.compilations.WithLabelValues("1", ResultCached)); got != 1 {
		t.Fatalf("cached compilations: %v", got)
	}
	if got := testutil.ToFloat64(c.compilations.WithLabelValues("2", ResultError)); got != 1 {
		t.Fatalf("error compilations: %v", got)
	}
	if got := testutil.ToFloat64(c.skippedResources.WithLabelValues("1")); got != 2 {
		t.Fatalf("skipped: %v", got)
	}
	// Cached renders do not observe a duration.
	if got := testutil.CollectAndCount(c.compileDuration); got != 2 {
		t.Fatalf("duration series: %d", got)
	}
}

func TestCollector_DocumentRouters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.SetDocumentRouters(3, 5, 1, 0)
	c.SetDocumentRouters(3, 4, 1, 0)

	if got := testutil.ToFloat64(c.documentRouters.WithLabelValues("3", "http")); got != 4 {
		t.Fatalf("http routers: %v", got)
	}
	if got := testutil.ToFloat64(c.documentRouters.WithLabelValues("3", "tcp")); got != 1 {
		t.Fatalf("tcp routers: %v", got)
	}
}

func TestCollector_PeerCallsRefreshAndReloads(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.ObservePeerCall("add_peer", 1, "", 10*time.Millisecond)
	c.ObservePeerCall("add_peer", 1, "unreachable", time.Millisecond)
	c.ObservePeerCall("remove_peer", 1, "", time.Millisecond)
	c.RecordRefresh(0)
	c.RecordRefresh(3)
	c.RecordConfigReload(nil)
	c.RecordConfigReload(errors.New("bad yaml"))

	if got := testutil.ToFloat64(c.peerCalls.WithLabelValues("add_peer", "ok")); got != 1 {
		t.Fatalf("add ok: %v", got)
	}
	if got := testutil.ToFloat64(c.peerCalls.WithLabelValues("add_peer", "unreachable")); got != 1 {
		t.Fatalf("add unreachable: %v", got)
	}
	if got := testutil.ToFloat64(c.refreshRuns.WithLabelValues(ResultError)); got != 1 {
		t.Fatalf("refresh errors: %v", got)
	}
	if got := testutil.ToFloat64(c.configReloads.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("reload ok: %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordCompilation(9, ResultOK, time.Millisecond, 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status: %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{`burrow_compiler_compilations_total{exit_node="9",result="ok"} 1`, "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("exposition missing %q", want)
		}
	}
}
