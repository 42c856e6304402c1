// Package metrics exposes Prometheus counters for sign-in activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sign-in results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Sign-out modes.
const (
	ModePartial = "partial"
	ModeFull    = "full"
)

// User resolution states.
const (
	StateAuthenticated = "authenticated"
	StateAnonymous     = "anonymous"
	StateError         = "error"
)

// Auth holds the auth counters. A nil *Auth is valid and records nothing.
type Auth struct {
	signIns     *prometheus.CounterVec
	signOuts    *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

// NewAuth registers the auth counters with reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	factory := promauto.With(reg)

	return &Auth{
		signIns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "sign_in_total",
			Help:      "Sign-in attempts by result",
		}, []string{"result"}),

		signOuts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "sign_out_total",
			Help:      "Sign-outs by mode",
		}, []string{"mode"}),

		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "user_resolutions_total",
			Help:      "Session user resolutions by resulting state",
		}, []string{"state"}),
	}
}

// SignIn counts a sign-in attempt.
func (m *Auth) SignIn(result string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(result).Inc()
}

// SignOut counts a sign-out.
func (m *Auth) SignOut(mode string) {
	if m == nil {
		return
	}
	m.signOuts.WithLabelValues(mode).Inc()
}

// Resolution counts a session user resolution.
func (m *Auth) Resolution(state string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(state).Inc()
}
