package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveWalletOperation(t *testing.T) {
	before := testutil.ToFloat64(walletOperationsTotal.WithLabelValues("payment", "LIMIT_EXCEEDED"))
	ObserveWalletOperation("payment", "LIMIT_EXCEEDED")
	after := testutil.ToFloat64(walletOperationsTotal.WithLabelValues("payment", "LIMIT_EXCEEDED"))

	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, grew by %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP("/api/wallet/", http.MethodGet, "200", 15*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "smartpay_http_requests_total") {
		t.Fatalf("expected http counter in exposition, got:\n%s", body)
	}
}
