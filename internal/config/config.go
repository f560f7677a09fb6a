/**
 * @description
 * Configuration management for the engine-service. Uses viper to load
 * settings from environment variables, providing a centralized and
 * consistent way to manage application settings.
 */
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	StripeSecretKey string `mapstructure:"STRIPE_SECRET_KEY"`

	PostmarkServerToken string `mapstructure:"POSTMARK_SERVER_TOKEN"`
	EmailFromAddress    string `mapstructure:"EMAIL_FROM_ADDRESS"`

	AMQPURL        string `mapstructure:"AMQP_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`
	EventsQueue    string `mapstructure:"EVENTS_QUEUE"`

	RenewalSweepSchedule string `mapstructure:"RENEWAL_SWEEP_SCHEDULE"`
	FanoutMaxConcurrent  int64  `mapstructure:"FANOUT_MAX_CONCURRENT"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("EVENTS_EXCHANGE", "fanforge.events")
	viper.SetDefault("EVENTS_QUEUE", "engine-service.events")
	viper.SetDefault("RENEWAL_SWEEP_SCHEDULE", "0 9 * * *")
	viper.SetDefault("FANOUT_MAX_CONCURRENT", 16)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("POSTMARK_SERVER_TOKEN")
	_ = viper.BindEnv("EMAIL_FROM_ADDRESS")
	_ = viper.BindEnv("AMQP_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("EVENTS_QUEUE")
	_ = viper.BindEnv("RENEWAL_SWEEP_SCHEDULE")
	_ = viper.BindEnv("FANOUT_MAX_CONCURRENT")

	err = viper.Unmarshal(&config)
	return
}
