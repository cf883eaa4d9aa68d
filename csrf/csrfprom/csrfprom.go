// Package csrfprom exports csrf Guard events as Prometheus metrics.
package csrfprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JeanGrijp/go-csrfguard/csrf"
)

// Observer implements csrf.Observer with Prometheus counters.
type Observer struct {
	issued  prometheus.Counter
	deleted prometheus.Counter
	checked *prometheus.CounterVec
}

var _ csrf.Observer = (*Observer)(nil)

// New creates an Observer and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csrf",
			Name:      "tokens_issued_total",
			Help:      "Tokens generated and stored in a session.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csrf",
			Name:      "tokens_deleted_total",
			Help:      "Explicit token deletions.",
		}),
		checked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csrf",
			Name:      "validations_total",
			Help:      "Token validations by outcome.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{o.issued, o.deleted, o.checked} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) TokenIssued()  { o.issued.Inc() }
func (o *Observer) TokenDeleted() { o.deleted.Inc() }

func (o *Observer) TokenChecked(r csrf.Reason) {
	o.checked.WithLabelValues(r.String()).Inc()
}
