package alert

import "time"

const (
	providerSentinel = "sentinel"
	providerNoop     = "noop"
)

// Config selects and configures the alert provider.
type Config struct {
	// Provider is either "sentinel" or "noop".
	Provider string `yaml:"provider" validate:"oneof=sentinel noop" default:"noop"`

	// SentinelHost is the hostname of the Sentinel service.
	SentinelHost string `yaml:"sentinel_host" validate:"required_if=Provider sentinel"`

	// SentinelPort is the gRPC port of the Sentinel service.
	SentinelPort int `yaml:"sentinel_port" validate:"required_if=Provider sentinel"`

	// SendTimeout bounds a single SendError call.
	SendTimeout time.Duration `yaml:"send_timeout" default:"3s"`
}
