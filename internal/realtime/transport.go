package realtime

import (
	"bakso/internal/providers"
	"bakso/internal/realtime/interfaces"
	"bakso/internal/structures"
	"fmt"
)

// NewTransport picks the realtime backend named by transport.driver.
func NewTransport(conf *structures.Config, logger providers.Logger) (interfaces.TransportInterface, error) {
	switch conf.Transport.Driver {
	case "", "memory":
		logger.Infof(providers.TypeApp, "Realtime transport: in-process hub")
		return NewMemoryTransport(logger), nil
	case "redis":
		t, err := NewRedisTransport(&conf.Transport.Redis, logger)
		if err != nil {
			return nil, err
		}
		logger.Infof(providers.TypeApp, "Realtime transport: redis at %s", conf.Transport.Redis.Addr)
		return t, nil
	default:
		return nil, fmt.Errorf("realtime: unknown transport driver %q", conf.Transport.Driver)
	}
}
