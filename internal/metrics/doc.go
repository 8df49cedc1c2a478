// Package metrics exposes Prometheus collectors for the dev gateway.
//
// Collectors are registered on construction through promauto, on the
// default registerer unless WithRegistry is given:
//
//	m := metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
//	http.Handle("/metrics", m.Handler())
//
// All recording methods are safe on a nil *Metrics, so callers that run
// without metrics can pass nil.
package metrics
