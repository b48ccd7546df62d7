package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Register adds collectors to the default prometheus registry.
// A collector registered before is replaced, so a retried run gets fresh values.
func Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			prometheus.Unregister(c)
			if err := prometheus.Register(c); err != nil {
				return errors.Wrap(err, "Can't register metric")
			}
		}
	}
	return nil
}
