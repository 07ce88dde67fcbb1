package providers

import (
	"bakso/internal/structures"
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
	"time"
)

func setTrackerDefaults() {
	viper.SetDefault("tracker.sellerRadius", 3000)
	viper.SetDefault("tracker.buyerRadius", 3000)
	viper.SetDefault("tracker.presenceUpdateBuffer", time.Second)
	viper.SetDefault("tracker.retrackInterval", 3*time.Second)
	viper.SetDefault("tracker.pingRateLimit", 5*time.Minute)
	viper.SetDefault("tracker.notificationTTL", 5*time.Minute)
	viper.SetDefault("tracker.regionCellScale", 10)
	viper.SetDefault("tracker.collisionOffset", 0.01)
	viper.SetDefault("tracker.pairOnPing", true)
	viper.SetDefault("tracker.rateLimitScope", "session")
	viper.SetDefault("tracker.walkingSpeed", 1.4)
	viper.SetDefault("transport.driver", "memory")
	viper.SetDefault("transport.redis.addr", "localhost:6379")
	viper.SetDefault("transport.redis.prefix", "bakso")
	viper.SetDefault("transport.redis.presenceTTL", 30*time.Second)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	setTrackerDefaults()

	viper.BindEnv("logger.level", "BAKSO_LOG_LEVEL")
	viper.BindEnv("transport.driver", "BAKSO_TRANSPORT_DRIVER")
	viper.BindEnv("transport.redis.addr", "BAKSO_REDIS_ADDR")
	viper.BindEnv("tracker.sellerRadius", "BAKSO_SELLER_RADIUS")
	viper.BindEnv("tracker.buyerRadius", "BAKSO_BUYER_RADIUS")
	viper.BindEnv("tracker.rateLimitScope", "BAKSO_RATE_LIMIT_SCOPE")
	viper.BindEnv("cache.enabled", "BAKSO_CACHE_ENABLED")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "BaksoTracker"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
