package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the courtkeeper service.
type Config struct {
	Environment string    `mapstructure:"environment"`
	Port        int       `mapstructure:"port"`
	LogLevel    string    `mapstructure:"log_level"`
	Database    Database  `mapstructure:"database"`
	Redis       Redis     `mapstructure:"redis"`
	NATS        NATS      `mapstructure:"nats"`
	Booking     Booking   `mapstructure:"booking"`
	Reconciler  Reconciler `mapstructure:"reconciler"`
}

type Database struct {
	URL string `mapstructure:"url"`
}

type Redis struct {
	URL string `mapstructure:"url"`
}

type NATS struct {
	URL string `mapstructure:"url"`
}

// Booking carries the policy knobs the evaluator and services consult.
// SlotSizeMinutes, NoShowGraceMinutes, MinSessionMinutes are expressed in
// minutes because that is how the product describes them; the evaluator
// converts to time.Duration at the call site.
type Booking struct {
	SlotSizeMinutes    int      `mapstructure:"slot_size_minutes"`
	NoShowGraceMinutes int      `mapstructure:"no_show_grace_minutes"`
	MaxHorizonDays     int      `mapstructure:"max_horizon_days"`
	ClubHorizonDays    int      `mapstructure:"club_horizon_days"`
	MinSessionMinutes  int      `mapstructure:"min_session_minutes"`
	CleanupLockID      int64    `mapstructure:"cleanup_lock_id"`
	ValidClubs         []string `mapstructure:"valid_clubs"`
}

// HorizonDays returns the advance-booking horizon for the given user type,
// resolving the open question left by CLUB_BOOKING_HORIZON_DAYS: fall back
// to the individual horizon when the club horizon is unset.
func (b Booking) HorizonDays(userType string) int {
	if userType == "club" && b.ClubHorizonDays > 0 {
		return b.ClubHorizonDays
	}
	return b.MaxHorizonDays
}

type Reconciler struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// Load reads configuration from (in ascending priority) defaults, an
// optional ./configs/config.yaml, and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("nats.url", "NATS_URL")
	viper.BindEnv("environment", "ENVIRONMENT")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("port", "PORT")
	viper.BindEnv("booking.slot_size_minutes", "SLOT_SIZE_MINUTES")
	viper.BindEnv("booking.no_show_grace_minutes", "NO_SHOW_GRACE_MINUTES")
	viper.BindEnv("booking.max_horizon_days", "MAX_BOOKING_HORIZON_DAYS")
	viper.BindEnv("booking.club_horizon_days", "CLUB_BOOKING_HORIZON_DAYS")
	viper.BindEnv("booking.min_session_minutes", "MIN_SESSION_MINUTES")
	viper.BindEnv("booking.cleanup_lock_id", "CLEANUP_LOCK_ID")
	viper.BindEnv("booking.valid_clubs", "VALID_CLUBS")
	viper.BindEnv("reconciler.tick_interval", "CLEANUP_TICK_INTERVAL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Booking.ClubHorizonDays == 0 {
		cfg.Booking.ClubHorizonDays = cfg.Booking.MaxHorizonDays
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("database.url", "postgres://localhost:5432/courtkeeper?sslmode=disable")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("nats.url", "nats://localhost:4222")

	viper.SetDefault("booking.slot_size_minutes", 30)
	viper.SetDefault("booking.no_show_grace_minutes", 15)
	viper.SetDefault("booking.max_horizon_days", 7)
	viper.SetDefault("booking.club_horizon_days", 0)
	viper.SetDefault("booking.min_session_minutes", 30)
	viper.SetDefault("booking.cleanup_lock_id", 1001)
	viper.SetDefault("booking.valid_clubs", []string{"Roobooru", "Vanguard HC", "Solstice Club"})

	viper.SetDefault("reconciler.tick_interval", "1m")
}
