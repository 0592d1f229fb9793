package config

import "time"

// Config is the top-level configuration.
type Config struct {
	Executor  ExecutorConfig  `json:"executor"`
	Tools     ToolsConfig     `json:"tools"`
	History   HistoryConfig   `json:"history"`
	Workspace WorkspaceConfig `json:"workspace"`
	API       APIConfig       `json:"api"`
}

// ExecutorConfig holds worker pool settings.
type ExecutorConfig struct {
	Workers     int      `json:"workers"`                // Concurrent handler ceiling
	TaskTimeout Duration `json:"task_timeout,omitempty"` // Per-handler budget; zero disables it
}

// ToolsConfig configures the built-in handler set. Latencies simulate I/O
// delay in the demo handlers; zero runs them at full speed.
type ToolsConfig struct {
	CalculatorLatency Duration          `json:"calculator_latency,omitempty"`
	SearchLatency     Duration          `json:"search_latency,omitempty"`
	FileLatency       Duration          `json:"file_latency,omitempty"`
	Knowledge         map[string]string `json:"knowledge,omitempty"` // Extra search entries, merged over the built-ins
	Resilient         []string          `json:"resilient,omitempty"` // Handler names wrapped with retry and a circuit breaker
}

// HistoryConfig configures run persistence.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // SQLite file; empty resolves under the home directory
}

// WorkspaceConfig configures the scratch directory the file handlers write
// into. An empty root disables the file handlers entirely.
type WorkspaceConfig struct {
	Root string `json:"root,omitempty"`
}

// APIConfig holds the HTTP server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
