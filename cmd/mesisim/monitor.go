package main

import (
	"strings"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/config"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/monitoring"
)

// newMonitorIfRequested starts the live HTTP monitor when --monitor-addr
// was given, returning nil otherwise so callers can treat "no monitor"
// uniformly.
func newMonitorIfRequested(cfg *config.Config) *monitoring.Monitor {
	if cfg.MonitorAddr == "" {
		return nil
	}

	m := monitoring.NewMonitor()
	if port, ok := portFromAddr(cfg.MonitorAddr); ok {
		m.WithPortNumber(port)
	}
	m.StartServer()

	return m
}

// portFromAddr extracts a numeric port from an address of the form
// ":6060" or "host:6060". Anything else falls back to a random port.
func portFromAddr(addr string) (int, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0, false
	}

	portStr := addr[idx+1:]
	n := 0
	for _, r := range portStr {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}
