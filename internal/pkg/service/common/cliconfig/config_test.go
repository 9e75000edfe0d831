package cliconfig_test

import (
	"time"
)

type Config struct {
	String          string        `mapstructure:"string" sensitive:"true"`
	Int             int           `mapstructure:"int"`
	Float           float64       `mapstructure:"float"`
	Bool            bool          `mapstructure:"bool"`
	StringWithUsage string        `mapstructure:"string-with-usage" usage:"An usage text."`
	Duration        time.Duration `mapstructure:"duration"`
	Nested          Nested        `mapstructure:"nested"`
	Ignored         string
}

type Nested struct {
	Foo string `mapstructure:"foo-123"`
	Bar int    `mapstructure:"bar"`
}
