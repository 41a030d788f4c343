package config

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	args        []string
	configPath  string
	envPrefix   string
	dotEnvPaths []string
	searchPaths []string
}

// WithArgs specifies the command line arguments to parse, without the
// program name. Default is os.Args[1:]
func WithArgs(args []string) Option {
	return func(o *options) error {
		o.args = args
		return nil
	}
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "DALYBMS"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithDotEnv loads the given .env files before reading the environment.
// Unlike the default ".env", an explicit file must exist
func WithDotEnv(paths ...string) Option {
	return func(o *options) error {
		o.dotEnvPaths = paths
		return nil
	}
}

// WithSearchPaths replaces the directories searched for dalybms-bridge.toml
func WithSearchPaths(paths ...string) Option {
	return func(o *options) error {
		o.searchPaths = paths
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
