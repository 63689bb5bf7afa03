package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stocks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	collector.InstrumentHandler(mux).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stocks?sector=SEMI", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `sectorfolio_http_requests_total{method="GET",path="GET /api/stocks",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `sectorfolio_http_request_duration_seconds_count{method="GET",path="GET /api/stocks",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsAgentMetrics(t *testing.T) {
	collector, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	collector.ObserveRound("single")
	collector.ObserveRound("single")
	collector.ObserveTermination("single", "TERMINAL_SUCCESS")
	collector.ObserveToolCall("get_company_info", "ok", 20*time.Millisecond)
	collector.ObserveModelCall("openai", "success", time.Second, 120, 40)

	body := scrape(t, collector)
	for _, want := range []string{
		`sectorfolio_agent_rounds_total{loop="single"} 2`,
		`sectorfolio_agent_terminations_total{loop="single",state="TERMINAL_SUCCESS"} 1`,
		`sectorfolio_agent_tool_invocations_total{outcome="ok",tool="get_company_info"} 1`,
		`sectorfolio_llm_calls_total{provider="openai",status="success"} 1`,
		`sectorfolio_llm_tokens_total{direction="input",provider="openai"} 120`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
