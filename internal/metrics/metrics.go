// Package metrics exposes mower status and decoder outcomes to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/mower"
	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "automower"

// NewRegistry creates a Prometheus registry with the Go and process
// collectors and an automower_build_info gauge
func NewRegistry() *prometheus.Registry {
	info := version.Get()
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "build_info",
		Help:        "Build information of the exporter, always 1.",
		ConstLabels: prometheus.Labels{"version": info.Version, "commit": info.Commit, "goversion": info.GoVersion},
	})
	buildInfo.Set(1)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
	)
	return reg
}

// Handler returns the /metrics HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// MowerMetrics holds the gauges and counters for one mower
type MowerMetrics struct {
	DecodeTotal  *prometheus.CounterVec // labels: kind, result
	Battery      prometheus.Gauge
	Charging     prometheus.Gauge
	State        *prometheus.GaugeVec // labels: state; 1 for the current state
	Activity     *prometheus.GaugeVec // labels: activity; 1 for the current activity
	NextStart    prometheus.Gauge     // unix seconds, 0 when nothing is scheduled
	PollTotal    *prometheus.CounterVec
	LastPollTime prometheus.Gauge
}

// NewMowerMetrics registers and returns the mower metrics. Every series is
// labelled with the mower address.
func NewMowerMetrics(reg prometheus.Registerer, address string) *MowerMetrics {
	constLabels := prometheus.Labels{"address": address}
	m := &MowerMetrics{
		DecodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_total",
			Help:        "Decoded responses by kind and result.",
			ConstLabels: constLabels,
		}, []string{"kind", "result"}),
		Battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "battery_percent",
			Help:        "Battery level in percent.",
			ConstLabels: constLabels,
		}),
		Charging: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "charging",
			Help:        "1 while the mower is charging.",
			ConstLabels: constLabels,
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "state",
			Help:        "Current mower state (1 for the active state).",
			ConstLabels: constLabels,
		}, []string{"state"}),
		Activity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "activity",
			Help:        "Current mower activity (1 for the active activity).",
			ConstLabels: constLabels,
		}, []string{"activity"}),
		NextStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "next_start_timestamp_seconds",
			Help:        "Next scheduled start, 0 when none.",
			ConstLabels: constLabels,
		}),
		PollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "poll_total",
			Help:        "Status polls by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		LastPollTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_poll_timestamp_seconds",
			Help:        "Time of the last successful poll.",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(m.DecodeTotal, m.Battery, m.Charging, m.State, m.Activity, m.NextStart, m.PollTotal, m.LastPollTime)
	return m
}

// Observer returns a hook for mower.WithObserver that counts decode outcomes
func (m *MowerMetrics) Observer() mower.Observer {
	return func(kind protocol.ResponseKind, err error) {
		m.DecodeTotal.WithLabelValues(kind.String(), decodeResult(err)).Inc()
	}
}

func decodeResult(err error) string {
	if err == nil {
		return "ok"
	}
	if t, ok := protocol.ErrorTypeOf(err); ok {
		return t.String()
	}
	return "error"
}

// Update sets the gauges from a snapshot. Values whose query failed or was
// never sent keep their previous reading.
func (m *MowerMetrics) Update(s *mower.Snapshot) {
	if s.Has(protocol.KindBatteryLevel) {
		m.Battery.Set(float64(s.BatteryLevel))
	}
	if s.Has(protocol.KindIsCharging) {
		m.Charging.Set(boolGauge(s.Charging))
	}
	if s.Has(protocol.KindMowerState) && s.State != "" {
		m.State.Reset()
		m.State.WithLabelValues(string(s.State)).Set(1)
	}
	if s.Has(protocol.KindMowerActivity) && s.Activity != "" {
		m.Activity.Reset()
		m.Activity.WithLabelValues(string(s.Activity)).Set(1)
	}
	if s.Has(protocol.KindStartTime) {
		if s.NextStartTime.IsZero() {
			m.NextStart.Set(0)
		} else {
			m.NextStart.Set(float64(s.NextStartTime.Unix()))
		}
	}
	m.LastPollTime.Set(float64(s.Taken.Unix()))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Snapshotter is satisfied by *mower.Client
type Snapshotter interface {
	Snapshot(ctx context.Context) (*mower.Snapshot, error)
}

// Poll takes a snapshot every interval and feeds it into m until ctx is done
func (m *MowerMetrics) Poll(ctx context.Context, client Snapshotter, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.pollOnce(ctx, client)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *MowerMetrics) pollOnce(ctx context.Context, client Snapshotter) {
	snap, err := client.Snapshot(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Warn("Status poll failed", zap.Error(err))
		}
		m.PollTotal.WithLabelValues("error").Inc()
		return
	}
	m.Update(snap)
	if snap.OK() {
		m.PollTotal.WithLabelValues("ok").Inc()
	} else {
		m.PollTotal.WithLabelValues("partial").Inc()
	}
}
