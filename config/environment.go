package config

// Environment describes the datasource a session opens a connection
// against (spec §1/§6's "configured environment id", the last field of
// a Cache Entry key). A deployment with more than one datasource
// registers additional Environment values through Register/Get under
// a distinct section name; this one is the default.
type Environment struct {
	ID     string `json:"id" mapstructure:"id" yaml:"id" default:"development"`
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver" default:"sqlite"`
	DSN    string `json:"dsn" mapstructure:"dsn" yaml:"dsn" default:"file::memory:?cache=shared"`
}

func (e *Environment) setDefault() {}
