package conversation

import (
	"time"
)

type Config struct {
	MaxConcurrent        int           `json:"maxConcurrent" mapstructure:"max-concurrent" usage:"Maximum number of concurrent live calls." validate:"min=1"`
	AdmissionGracePeriod time.Duration `json:"admissionGracePeriod" mapstructure:"admission-grace-period" usage:"Maximum wait for a free line, then the call fails." validate:"min=0"`
	RingTimeout          time.Duration `json:"ringTimeout" mapstructure:"ring-timeout" usage:"Unanswered call is missed after the timeout." validate:"required"`
	MinConnectedDuration time.Duration `json:"minConnectedDuration" mapstructure:"min-connected-duration" usage:"Shorter call is considered failed." validate:"min=0"`
	HostName             string        `json:"hostName" mapstructure:"host-name" usage:"Name of the host participant of the call." validate:"required"`
}

func NewConfig() Config {
	return Config{
		MaxConcurrent:        50,
		AdmissionGracePeriod: 2 * time.Minute,
		RingTimeout:          45 * time.Second,
		MinConnectedDuration: 30 * time.Second,
		HostName:             "Santa",
	}
}
