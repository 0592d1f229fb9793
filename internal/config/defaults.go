package config

import "time"

// DefaultConfig returns the default configuration: three workers, demo
// handler latencies matching simulated I/O, history enabled, API bound to
// localhost.
func DefaultConfig() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Workers: 3,
		},
		Tools: ToolsConfig{
			CalculatorLatency: Duration(500 * time.Millisecond),
			SearchLatency:     Duration(1 * time.Second),
			FileLatency:       Duration(300 * time.Millisecond),
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Workspace: WorkspaceConfig{
			Root: "workspace",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8917,
		},
	}
}
