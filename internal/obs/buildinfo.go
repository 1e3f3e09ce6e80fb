package obs

import "github.com/prometheus/client_golang/prometheus"

// RegisterBuildInfo registers build_info{version, commit} 1 with reg.
func RegisterBuildInfo(reg prometheus.Registerer, version, commit string) {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Auth service build information.",
		},
		[]string{"version", "commit"},
	)
	reg.MustRegister(buildInfo)
	buildInfo.WithLabelValues(version, commit).Set(1)
}
