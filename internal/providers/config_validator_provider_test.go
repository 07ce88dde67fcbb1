package providers

import (
	"bakso/internal/structures"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *structures.Config {
	return &structures.Config{
		WebServer: structures.Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Persistence: structures.Persistence{
			FilePath:     "/tmp/bakso-ledger.dat",
			SaveInterval: 30 * time.Second,
		},
		Logger: structures.LoggerConfig{
			Level: "info",
			Mode:  0644,
			Dir:   "/tmp/logs",
		},
		Tracker: structures.TrackerConfig{
			SellerRadius:         3000,
			BuyerRadius:          3000,
			PresenceUpdateBuffer: time.Second,
			RetrackInterval:      3 * time.Second,
			PingRateLimit:        5 * time.Minute,
			NotificationTTL:      5 * time.Minute,
			RegionCellScale:      10,
			RateLimitScope:       "session",
		},
		Transport: structures.TransportConfig{
			Driver: "memory",
		},
	}
}

func TestConfigValidator_ValidConfig(t *testing.T) {
	v := NewCnfValidator(validConfig())
	assert.NoError(t, v.Validate())
}

func TestConfigValidator_EmptyHost(t *testing.T) {
	c := validConfig()
	c.WebServer.Host = ""
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_ZeroPort(t *testing.T) {
	c := validConfig()
	c.WebServer.Port = 0
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_InvalidLogLevel(t *testing.T) {
	c := validConfig()
	c.Logger.Level = "verbose"
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_ZeroRadius(t *testing.T) {
	c := validConfig()
	c.Tracker.BuyerRadius = 0
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_NegativeRadius(t *testing.T) {
	c := validConfig()
	c.Tracker.SellerRadius = -100
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_UnknownRateLimitScope(t *testing.T) {
	c := validConfig()
	c.Tracker.RateLimitScope = "global"
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_UnknownTransport(t *testing.T) {
	c := validConfig()
	c.Transport.Driver = "websocket"
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}
