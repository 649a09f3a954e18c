package settlement

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	settlements *prometheus.CounterVec
	discoveries *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_settlements_total",
			Help: "Purchase attempts by outcome.",
		}, []string{"status"}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradepost_container_discoveries_total",
			Help: "Stock container searches by the path that produced the result.",
		}, []string{"path"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.settlements, err = register(reg, m.settlements); err != nil {
		return nil, err
	}
	if m.discoveries, err = register(reg, m.discoveries); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an identical collector already on reg so several engines
// can share one registry.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
