// Package config contains the configuration of the santacall service.
package config

import (
	"time"

	"github.com/santacall/santacall/internal/pkg/service/santacall/backend"
	"github.com/santacall/santacall/internal/pkg/service/santacall/conversation"
	"github.com/santacall/santacall/internal/pkg/service/santacall/timewindow"
	"github.com/santacall/santacall/internal/pkg/service/santacall/videojob"
)

const EnvPrefix = "SANTACALL_"

type Config struct {
	DebugLog        bool                `json:"debugLog" mapstructure:"debug-log" usage:"Enable debug log level."`
	LogFormat       string              `json:"logFormat" mapstructure:"log-format" usage:"Log format, \"console\" or \"json\"." validate:"oneof=console json"`
	ShutdownTimeout time.Duration       `json:"shutdownTimeout" mapstructure:"shutdown-timeout" usage:"Maximum duration of the graceful shutdown." validate:"required"`
	API             API                 `json:"api" mapstructure:"api"`
	Metrics         Metrics             `json:"metrics" mapstructure:"metrics"`
	TimeWindow      timewindow.Config   `json:"timeWindow" mapstructure:"time-window"`
	Render          videojob.Config     `json:"render" mapstructure:"render"`
	Conversation    conversation.Config `json:"conversation" mapstructure:"conversation"`
	Backends        backend.Config      `json:"backends" mapstructure:"backends"`
}

type API struct {
	Listen            string `json:"listen" mapstructure:"listen" usage:"Listen address of the API HTTP server." validate:"required,hostname_port"`
	CallbackDedupSize int64  `json:"callbackDedupSize" mapstructure:"callback-dedup-size" usage:"Number of recent backend callbacks remembered for the de-duplication." validate:"min=0"`
}

type Metrics struct {
	Listen string `json:"listen" mapstructure:"listen" usage:"Listen address of the Prometheus metrics endpoint." validate:"required,hostname_port"`
}

func New() Config {
	return Config{
		DebugLog:        false,
		LogFormat:       "json",
		ShutdownTimeout: 30 * time.Second,
		API: API{
			Listen:            "0.0.0.0:8000",
			CallbackDedupSize: 10000,
		},
		Metrics: Metrics{
			Listen: "0.0.0.0:9000",
		},
		TimeWindow:   timewindow.NewConfig(),
		Render:       videojob.NewConfig(),
		Conversation: conversation.NewConfig(),
		Backends:     backend.NewConfig(),
	}
}
