package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestShopMetricsCountsCheckoutsAndInvalidations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)

	m.ObserveCheckout("branch-hcm", "ok")
	m.ObserveCheckout("branch-hcm", "ok")
	m.ObserveCheckout("branch-hcm", "EMPTY_CART")
	m.ObserveSale("branch-hcm", "full", 775000)
	m.IncInvalidation("")
	m.ObserveCacheLookup("sales", true)

	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("branch-hcm", "ok")); got != 2 {
		t.Fatalf("expected ok=2, got %f", got)
	}
	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("branch-hcm", "EMPTY_CART")); got != 1 {
		t.Fatalf("expected EMPTY_CART=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.invalidations.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty branch to be labelled unknown, got %f", got)
	}
	if got := testutil.CollectAndCount(m.saleAmount); got != 1 {
		t.Fatalf("expected one sale histogram series, got %d", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *ShopMetrics
	m.ObserveCheckout("b", "ok")
	m.ObserveSale("b", "full", 1)
	m.IncInvalidation("b")
	m.ObserveCacheLookup("sales", false)

	empty := NewShopMetrics(nil)
	empty.ObserveCheckout("b", "ok")
}
