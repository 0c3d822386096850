package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics records checkout outcomes and report cache activity.
type ShopMetrics struct {
	checkouts     *prometheus.CounterVec
	saleAmount    *prometheus.HistogramVec
	invalidations *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// NewShopMetrics registers the shop metrics on the provided registerer. A nil
// registerer yields a collector whose methods are no-ops.
func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "motopos_checkouts_total",
		Help: "Checkout attempts by branch and result code.",
	}, []string{"branch", "result"})
	saleAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "motopos_sale_total_vnd",
		Help:    "Distribution of finalized sale totals.",
		Buckets: []float64{50_000, 100_000, 250_000, 500_000, 1_000_000, 2_500_000, 5_000_000, 10_000_000, 50_000_000},
	}, []string{"branch", "payment_type"})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "motopos_report_cache_invalidations_total",
		Help: "Report cache invalidations triggered by sale changes.",
	}, []string{"branch"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "motopos_report_cache_lookups_total",
		Help: "Report cache lookups by outcome.",
	}, []string{"report", "outcome"})
	reg.MustRegister(checkouts, saleAmount, invalidations, cacheLookups)
	return &ShopMetrics{
		checkouts:     checkouts,
		saleAmount:    saleAmount,
		invalidations: invalidations,
		cacheLookups:  cacheLookups,
	}
}

// ObserveCheckout counts one checkout attempt. result is "ok", "duplicate" or
// a stable error code.
func (m *ShopMetrics) ObserveCheckout(branch, result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(branch), normalizeLabel(result)).Inc()
}

func (m *ShopMetrics) ObserveSale(branch, paymentType string, total int64) {
	if m == nil || m.saleAmount == nil {
		return
	}
	m.saleAmount.WithLabelValues(normalizeLabel(branch), normalizeLabel(paymentType)).Observe(float64(total))
}

func (m *ShopMetrics) IncInvalidation(branch string) {
	if m == nil || m.invalidations == nil {
		return
	}
	m.invalidations.WithLabelValues(normalizeLabel(branch)).Inc()
}

func (m *ShopMetrics) ObserveCacheLookup(report string, hit bool) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(normalizeLabel(report), outcome).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
