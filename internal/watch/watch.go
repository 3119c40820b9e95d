// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package watch polls one controller on a fixed interval.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ffutop/langji-ac/controller"
	"github.com/ffutop/langji-ac/internal/metrics"
	"github.com/ffutop/langji-ac/modbus"
)

// Reader is the part of controller.Client a watcher needs.
type Reader interface {
	ReadSensors(ctx context.Context) (controller.RegisterValueSet, error)
	ReadAlarms(ctx context.Context) (controller.RegisterValueSet, error)
	ReadStatus(ctx context.Context) (controller.RegisterValueSet, error)
}

// Result is the outcome of one poll cycle.
type Result struct {
	At       time.Time
	Duration time.Duration
	Sensors  controller.RegisterValueSet
	Alarms   controller.RegisterValueSet
	Status   controller.RegisterValueSet
	Err      error
}

// Watcher reads sensors, alarms and status every Interval.
type Watcher struct {
	reader   Reader
	interval time.Duration
	metrics  *metrics.Metrics
}

// New creates a watcher. m may be nil.
func New(reader Reader, interval time.Duration, m *metrics.Metrics) (*Watcher, error) {
	if reader == nil {
		return nil, errors.New("watch: reader required")
	}
	if interval <= 0 {
		return nil, errors.New("watch: interval must be > 0")
	}
	return &Watcher{reader: reader, interval: interval, metrics: m}, nil
}

// PollOnce performs exactly one poll cycle. Any failed read aborts the cycle
// and nothing is recorded except the failure.
func (w *Watcher) PollOnce(ctx context.Context) Result {
	res := Result{At: time.Now()}

	sensors, err := w.reader.ReadSensors(ctx)
	if err != nil {
		res.Err = err
		return w.record(ctx, res)
	}
	alarms, err := w.reader.ReadAlarms(ctx)
	if err != nil {
		res.Err = err
		return w.record(ctx, res)
	}
	status, err := w.reader.ReadStatus(ctx)
	if err != nil {
		res.Err = err
		return w.record(ctx, res)
	}

	res.Sensors, res.Alarms, res.Status = sensors, alarms, status
	return w.record(ctx, res)
}

func (w *Watcher) record(ctx context.Context, res Result) Result {
	res.Duration = time.Since(res.At)
	if res.Err != nil && ctx.Err() != nil {
		// Cancelled by the caller, not a controller failure.
		slog.Debug("Poll cancelled", "err", res.Err, "duration", res.Duration)
		return res
	}
	if res.Err != nil {
		kind := ErrorKind(res.Err)
		slog.Warn("Poll failed", "kind", kind, "err", res.Err, "duration", res.Duration)
		if w.metrics != nil {
			w.metrics.ObservePoll(res.Duration, false, kind)
		}
		return res
	}

	slog.Debug("Poll completed", "duration", res.Duration,
		"sensors", len(res.Sensors), "alarms", len(res.Alarms), "status", len(res.Status))
	if w.metrics != nil {
		w.metrics.ObserveSensors(res.Sensors)
		w.metrics.ObserveAlarms(res.Alarms)
		w.metrics.ObserveStatus(res.Status)
		w.metrics.ObservePoll(res.Duration, true, "")
	}
	return res
}

// Run polls immediately and then on every tick until ctx is done. Results are
// sent to out when it is non-nil. Cycles never overlap and are not retried.
func (w *Watcher) Run(ctx context.Context, out chan<- Result) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		res := w.PollOnce(ctx)
		if out != nil {
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ErrorKind classifies err for the poll error counter.
func ErrorKind(err error) string {
	var (
		connErr   *modbus.ConnectionError
		crcErr    *modbus.CRCMismatchError
		excErr    *modbus.ExceptionError
		unkErr    *modbus.UnknownExceptionError
		unitErr   *modbus.UnitIDMismatchError
		verifyErr *modbus.WriteVerificationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.As(err, &connErr):
		return "connection"
	case errors.Is(err, modbus.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, modbus.ErrFrameTooShort):
		return "short_frame"
	case errors.As(err, &crcErr):
		return "crc"
	case errors.As(err, &excErr), errors.As(err, &unkErr):
		return "exception"
	case errors.As(err, &unitErr):
		return "unit_id"
	case errors.As(err, &verifyErr):
		return "verification"
	default:
		return "other"
	}
}
