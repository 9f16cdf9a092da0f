package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"progression/internal/ledger"
	"progression/internal/profile"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *engineMetrics
)

type engineMetrics struct {
	runs     *prometheus.CounterVec
	xp       prometheus.Gauge
	level    prometheus.Gauge
	streak   *prometheus.GaugeVec
	chain    *prometheus.GaugeVec
	momentum prometheus.Gauge
	days     prometheus.Gauge
	lastXP   prometheus.Gauge
}

func newEngineMetrics() *engineMetrics {
	metricsInitOnce.Do(func() {
		em := &engineMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "progression_runs_total",
				Help: "Scoring runs by operation and outcome.",
			}, []string{"operation", "result"}),
			xp: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "progression_xp_total",
				Help: "Total v3 XP of the ledger.",
			}),
			level: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "progression_level",
				Help: "Current profile level.",
			}),
			streak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "progression_streak_days",
				Help: "Active-day streak, current and longest.",
			}, []string{"kind"}),
			chain: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "progression_ascending_chain",
				Help: "Ascending chain, current and longest.",
			}, []string{"kind"}),
			momentum: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "progression_momentum_mult",
				Help: "Momentum multiplier of the latest day.",
			}),
			days: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "progression_ledger_days",
				Help: "Number of ledger entries.",
			}),
			lastXP: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "progression_last_day_xp",
				Help: "v3 XP of the latest day.",
			}),
		}
		prometheus.MustRegister(em.runs, em.xp, em.level, em.streak, em.chain, em.momentum, em.days, em.lastXP)
		sharedMetrics = em
	})
	return sharedMetrics
}

func (m *engineMetrics) observeRun(operation string, result string) {
	m.runs.WithLabelValues(operation, result).Inc()
}

func (m *engineMetrics) observeLedger(l *ledger.Ledger, p profile.Profile) {
	m.xp.Set(float64(l.Aggregates.XPTotal))
	m.level.Set(float64(p.Level))
	m.streak.WithLabelValues("current").Set(float64(l.Aggregates.CurrentStreak))
	m.streak.WithLabelValues("longest").Set(float64(l.Aggregates.LongestStreak))
	m.chain.WithLabelValues("current").Set(float64(l.Aggregates.CurrentChain))
	m.chain.WithLabelValues("longest").Set(float64(l.Aggregates.LongestChain))
	m.momentum.Set(l.Aggregates.MomentumMult)
	m.days.Set(float64(l.Aggregates.Days))
	if last, ok := l.Last(); ok {
		m.lastXP.Set(float64(last.V3XP))
	}
}
