package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	Logouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "logouts_total",
		Help:      "Logout attempts by result.",
	}, []string{"result"})

	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "token_refresh_total",
		Help:      "Token refresh attempts by result.",
	}, []string{"result"})
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
