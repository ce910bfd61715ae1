package player

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/flyover/internal/player"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	advances metric.Int64Counter
	restarts metric.Int64Counter
	index    metric.Int64ObservableGauge
}

func newMetrics(p *Player) (*metrics, metric.Registration, error) {
	m := meter()
	var (
		pm  metrics
		err error
	)

	pm.advances, err = m.Int64Counter(
		"player.advances",
		metric.WithDescription("Total point advances"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating advances counter: %w", err)
	}

	pm.restarts, err = m.Int64Counter(
		"player.restarts",
		metric.WithDescription("Total restart calls"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating restarts counter: %w", err)
	}

	pm.index, err = m.Int64ObservableGauge(
		"player.index",
		metric.WithDescription("Current point index"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating index gauge: %w", err)
	}

	reg, err := m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(pm.index, int64(p.Index()))
			return nil
		},
		pm.index,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("registering index callback: %w", err)
	}

	return &pm, reg, nil
}

func (m *metrics) advanced() {
	m.advances.Add(context.Background(), 1)
}

func (m *metrics) restarted() {
	m.restarts.Add(context.Background(), 1)
}
