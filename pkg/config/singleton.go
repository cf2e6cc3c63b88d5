package config

import "sync"

var (
	configMu sync.RWMutex
	current  *Config
	initOnce sync.Once
)

// Initialize loads the configuration from path exactly once and stores it
// for GetConfig. Later calls are no-ops and return the first call's error.
func Initialize(path string) error {
	var err error
	initOnce.Do(func() {
		var cfg *Config
		cfg, err = LoadOrDefault(path)
		if err != nil {
			return
		}
		SetConfig(cfg)
	})
	return err
}

// GetConfig returns the stored configuration, or nil before Initialize.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return current
}

// SetConfig replaces the stored configuration. Used by Initialize and by
// tests that need a known configuration without touching the filesystem.
func SetConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	current = cfg
}
