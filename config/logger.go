package config

// Logger configures the zap-backed subsystem loggers (Catalog, SQLNode,
// Binder, RowMap, Cache). Each subsystem gets its own rolling file under
// Dir named "<subsystem>.log", unless Dir is empty, in which case every
// subsystem logs to stdout.
type Logger struct {
	Dir        string `json:"dir" mapstructure:"dir" yaml:"dir" default:""`
	Level      string `json:"level" mapstructure:"level" yaml:"level" default:"info"`
	Format     string `json:"format" mapstructure:"format" yaml:"format" default:"json"`
	MaxAge     int    `json:"max_age" mapstructure:"max_age" yaml:"max_age" default:"7"`
	MaxSize    int    `json:"max_size" mapstructure:"max_size" yaml:"max_size" default:"100"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" yaml:"max_backups" default:"10"`
}

func (l *Logger) setDefault() {}
