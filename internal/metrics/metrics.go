// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package metrics exposes controller readings as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/ffutop/langji-ac/controller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "langji"

// Metrics holds the gauges updated by each poll.
type Metrics struct {
	registry *prometheus.Registry

	sensor   *prometheus.GaugeVec
	alarm    *prometheus.GaugeVec
	status   *prometheus.GaugeVec
	up       prometheus.Gauge
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates the metrics on their own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sensor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Scaled value of a controller holding register.",
		}, []string{"address", "label"}),
		alarm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_active",
			Help:      "Alarm discrete input state (1 = active).",
		}, []string{"address"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status_active",
			Help:      "Status coil state (1 = on).",
		}, []string{"address"}),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the last poll of the controller succeeded.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Failed polls by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a full controller poll.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
	m.registry.MustRegister(m.sensor, m.alarm, m.status, m.up, m.errors, m.duration)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSensors records scaled register values.
func (m *Metrics) ObserveSensors(values controller.RegisterValueSet) {
	for _, v := range values {
		m.sensor.WithLabelValues(controller.HexString(int(v.Address)), controller.Describe(v.Address)).Set(v.Value)
	}
}

// ObserveAlarms records alarm input states.
func (m *Metrics) ObserveAlarms(values controller.RegisterValueSet) {
	for _, v := range values {
		m.alarm.WithLabelValues(controller.HexString(int(v.Address))).Set(v.Value)
	}
}

// ObserveStatus records status coil states.
func (m *Metrics) ObserveStatus(values controller.RegisterValueSet) {
	for _, v := range values {
		m.status.WithLabelValues(controller.HexString(int(v.Address))).Set(v.Value)
	}
}

// ObservePoll records the outcome of one poll. kind is ignored on success.
func (m *Metrics) ObservePoll(d time.Duration, ok bool, kind string) {
	m.duration.Observe(d.Seconds())
	if ok {
		m.up.Set(1)
		return
	}
	m.up.Set(0)
	m.errors.WithLabelValues(kind).Inc()
}
