package config

const (
	defaultArchiveDir        = "~/.local/share/torrdrop/archive"
	defaultQuarantineDir     = "~/.local/share/torrdrop/quarantine"
	defaultLogDir            = "~/.local/share/torrdrop/logs"
	defaultTransmissionHost  = "localhost"
	defaultTransmissionPort  = 9091
	defaultRPCPath           = "/transmission/rpc"
	defaultRequestTimeout    = 30
	defaultPollInterval      = 5
	defaultStabilityInterval = 5
	defaultMaxAttempts       = 5
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNtfyTimeout       = 10
)

// Default returns a Config populated with repository defaults. The watched
// directory has no default; it must come from the config file.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveDir:    defaultArchiveDir,
			QuarantineDir: defaultQuarantineDir,
			LogDir:        defaultLogDir,
		},
		Transmission: Transmission{
			Host:           defaultTransmissionHost,
			Port:           defaultTransmissionPort,
			RPCPath:        defaultRPCPath,
			RequestTimeout: defaultRequestTimeout,
		},
		Workflow: Workflow{
			PollInterval:      defaultPollInterval,
			StabilityInterval: defaultStabilityInterval,
			MaxAttempts:       defaultMaxAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
