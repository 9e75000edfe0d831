package telemetry

import "go.opentelemetry.io/otel/metric"

type Meter interface {
	Counter(name, desc, unit string) metric.Int64Counter
	UpDownCounter(name, desc, unit string) metric.Int64UpDownCounter
	Histogram(name, desc, unit string) metric.Float64Histogram
}

type meter struct {
	meter metric.Meter
}

func (m *meter) Counter(name, desc, unit string) metric.Int64Counter {
	return mustInstrument(m.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit)))
}

func (m *meter) UpDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	return mustInstrument(m.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit)))
}

func (m *meter) Histogram(name, desc, unit string) metric.Float64Histogram {
	return mustInstrument(m.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
