// Copyright 2026 The Backoffice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter owns the gateway's instruments.
type Meter struct {
	meter metric.Meter

	decisions metric.Int64Counter
	logins    metric.Int64Counter
	exported  metric.Int64Counter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	var meter metric.Meter
	if cfg.Enabled {
		meter = otel.Meter(serviceName)
	} else {
		meter = noop.NewMeterProvider().Meter(serviceName)
	}

	m := &Meter{meter: meter}
	var err error
	if m.decisions, err = m.CreateCounter("backoffice.guard.decisions", "Route guard decisions by role, module, action and outcome"); err != nil {
		return nil, err
	}
	if m.logins, err = m.CreateCounter("backoffice.auth.logins", "Login attempts by outcome"); err != nil {
		return nil, err
	}
	if m.exported, err = m.CreateCounter("backoffice.export.rows", "Rows written to CSV exports"); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// RecordDecision counts one guard decision.
func (m *Meter) RecordDecision(ctx context.Context, role, module, action string, allowed bool) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("module", module),
		attribute.String("action", action),
		attribute.Bool("allowed", allowed),
	))
}

// RecordLogin counts one login attempt. outcome is "success" or a failure reason.
func (m *Meter) RecordLogin(ctx context.Context, outcome string) {
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordExport counts rows written by an export of kind.
func (m *Meter) RecordExport(ctx context.Context, kind string, rows int) {
	m.exported.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("kind", kind)))
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}
