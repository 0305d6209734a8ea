package infra

import (
	"context"

	"eventhour-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as decisões como counter.
//
// Labels: policy ("" vira "global") e outcome (allowed|denied). Key e Path
// ficam de fora por cardinalidade.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) *PrometheusStatsStore {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_decisions_total",
		Help: "Rate limit decisions by policy and outcome.",
	}, []string{"policy", "outcome"})
	if reg != nil {
		reg.MustRegister(decisions)
	}
	return &PrometheusStatsStore{decisions: decisions}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	policy := ev.Policy
	if policy == "" {
		policy = "global"
	}
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	s.decisions.WithLabelValues(policy, outcome).Inc()
	return nil
}
