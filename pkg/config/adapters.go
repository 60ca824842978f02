package config

import (
	"fmt"

	"github.com/marmos91/dittodav/pkg/adapter"
	"github.com/marmos91/dittodav/pkg/adapter/webdav"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Returns an error if no adapter is enabled.
func CreateAdapters(cfg *Config, m *MetricsResult) ([]adapter.Adapter, error) {
	if m == nil {
		m = noopMetrics()
	}

	var adapters []adapter.Adapter
	if cfg.Adapters.WebDAV.Enabled {
		adapters = append(adapters, webdav.New(cfg.Adapters.WebDAV, m.WebDAVMetrics, m.LockMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}
	return adapters, nil
}
