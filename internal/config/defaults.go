package config

const (
	defaultLogDir         = "~/.local/share/upapasta/logs"
	defaultRedundancy     = 15
	defaultBackend        = "parpar"
	defaultPostSize       = "20M"
	defaultConflictPolicy = "rename"
	defaultOutputTemplate = "{name}.nzb"
	defaultEnvFile        = ".env"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Upload: Upload{
			Redundancy:     defaultRedundancy,
			Backend:        defaultBackend,
			PostSize:       defaultPostSize,
			ConflictPolicy: defaultConflictPolicy,
			OutputTemplate: defaultOutputTemplate,
			EnvFile:        defaultEnvFile,
		},
		NFO: NFO{
			Enabled: true,
		},
		Tools: Tools{
			Rar:     "rar",
			ParPar:  "parpar",
			Par2:    "par2",
			Nyuu:    "nyuu",
			FFprobe: "ffprobe",
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
