package instance

import (
	"os"

	"github.com/umkmkit/hpp-backend/pkg/env"
)

// ID identifies this process in logs and lock ownership. It prefers an
// explicit HPP_INSTANCE_ID, then the platform dyno name, then the hostname.
func ID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return env.Get(host, "HPP_INSTANCE_ID", "DYNO")
}
