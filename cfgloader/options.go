package cfgloader

// Options holds configuration options for Load.
type Options struct {
	// ConfigDir is the directory holding the per-environment files.
	ConfigDir string
	// Environment overrides the ENVIRONMENT variable.
	Environment string
	// Silent disables printing the loaded config.
	Silent bool
}

// Option is a functional option for Load.
type Option func(*Options)

// WithConfigDir reads config files from dir instead of ./config.
func WithConfigDir(dir string) Option {
	return func(o *Options) {
		o.ConfigDir = dir
	}
}

// WithEnvironment selects env instead of reading ENVIRONMENT.
func WithEnvironment(env string) Option {
	return func(o *Options) {
		o.Environment = env
	}
}

// WithSilent disables config logging.
func WithSilent() Option {
	return func(o *Options) {
		o.Silent = true
	}
}

func buildOptions(opts []Option) Options {
	o := Options{ConfigDir: "./config"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
