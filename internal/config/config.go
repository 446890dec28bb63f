/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix    string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	WalletEventExchange     string `mapstructure:"WALLET_EVENT_EXCHANGE"`
	PayoutQueue             string `mapstructure:"PAYOUT_QUEUE"`
	AuthJWKSURL             string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience            string `mapstructure:"AUTH_AUDIENCE"`
	AuthIssuer              string `mapstructure:"AUTH_ISSUER"`
	PayoutAPIBaseURL        string `mapstructure:"PAYOUT_API_BASE_URL"`
	PayoutAPIKey            string `mapstructure:"PAYOUT_API_KEY"`
	CouponServiceURL        string `mapstructure:"COUPON_SERVICE_URL"`
	CouponServiceAPIKey     string `mapstructure:"COUPON_SERVICE_API_KEY"`
	WithdrawalsPerHourLimit int    `mapstructure:"WITHDRAWALS_PER_HOUR_LIMIT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WALLET_EVENT_EXCHANGE", "wallet.events")
	viper.SetDefault("PAYOUT_QUEUE", "wallet_service.payouts")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "wallet:rate_limit")
	viper.SetDefault("WITHDRAWALS_PER_HOUR_LIMIT", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENT_EXCHANGE")
	_ = viper.BindEnv("PAYOUT_QUEUE")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("AUTH_AUDIENCE")
	_ = viper.BindEnv("AUTH_ISSUER")
	_ = viper.BindEnv("PAYOUT_API_BASE_URL")
	_ = viper.BindEnv("PAYOUT_API_KEY")
	_ = viper.BindEnv("COUPON_SERVICE_URL")
	_ = viper.BindEnv("COUPON_SERVICE_API_KEY")
	_ = viper.BindEnv("WITHDRAWALS_PER_HOUR_LIMIT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform runtimes commonly inject PORT; it wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "wallet:rate_limit"
	}
	config.WalletEventExchange = strings.TrimSpace(config.WalletEventExchange)
	if config.WalletEventExchange == "" {
		config.WalletEventExchange = "wallet.events"
	}
	if config.WithdrawalsPerHourLimit < 0 {
		log.Printf("level=warn component=config msg=\"negative withdrawal rate limit configured; disabling\" limit=%d", config.WithdrawalsPerHourLimit)
		config.WithdrawalsPerHourLimit = 0
	}

	return
}
