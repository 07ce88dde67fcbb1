package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

// TrackerConfig holds the tunables of the proximity tracking core.
type TrackerConfig struct {
	SellerRadius         float64       `yaml:"sellerRadius" validate:"required|min:1"`
	BuyerRadius          float64       `yaml:"buyerRadius" validate:"required|min:1"`
	PresenceUpdateBuffer time.Duration `yaml:"presenceUpdateBuffer"`
	RetrackInterval      time.Duration `yaml:"retrackInterval" validate:"required|min:1"`
	PingRateLimit        time.Duration `yaml:"pingRateLimit" validate:"required|min:1"`
	NotificationTTL      time.Duration `yaml:"notificationTTL" validate:"required|min:1"`
	RegionCellScale      float64       `yaml:"regionCellScale" validate:"required|min:1"`
	CollisionOffset      float64       `yaml:"collisionOffset"`
	PairOnPing           bool          `yaml:"pairOnPing"`
	RateLimitScope       string        `yaml:"rateLimitScope" validate:"required|in:session,shared"`
	ClearOnRejoin        bool          `yaml:"clearOnRejoin"`
	WalkingSpeed         float64       `yaml:"walkingSpeed"`
	DefaultLat           float64       `yaml:"defaultLat"`
	DefaultLng           float64       `yaml:"defaultLng"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Prefix      string        `yaml:"prefix"`
	PresenceTTL time.Duration `yaml:"presenceTTL"`
}

type TransportConfig struct {
	Driver string      `yaml:"driver" validate:"required|in:memory,redis"`
	Redis  RedisConfig `yaml:"redis"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Tracker     TrackerConfig   `yaml:"tracker"`
	Transport   TransportConfig `yaml:"transport"`
	WebServer   Server          `yaml:"webServer"`
	Persistence Persistence     `yaml:"persistence"`
	Logger      LoggerConfig    `yaml:"logger"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}
