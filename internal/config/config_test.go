package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "WALLET_EVENT_EXCHANGE")
	unsetEnvWithCleanup(t, "WITHDRAWALS_PER_HOUR_LIMIT")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default ServerPort 8080, got %q", cfg.ServerPort)
	}
	if cfg.WalletEventExchange != "wallet.events" {
		t.Fatalf("expected default WalletEventExchange wallet.events, got %q", cfg.WalletEventExchange)
	}
	if cfg.PayoutQueue != "wallet_service.payouts" {
		t.Fatalf("expected default PayoutQueue wallet_service.payouts, got %q", cfg.PayoutQueue)
	}
	if cfg.WithdrawalsPerHourLimit != 10 {
		t.Fatalf("expected default WithdrawalsPerHourLimit 10, got %d", cfg.WithdrawalsPerHourLimit)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected platform PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_UsesWalletRedisURLAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "REDIS_URL")
	setEnvWithCleanup(t, "WALLET_REDIS_URL", "redis://alias-host:6379")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RedisURL != "redis://alias-host:6379" {
		t.Fatalf("expected RedisURL from alias env var, got %q", cfg.RedisURL)
	}
}

func TestLoadConfig_RedisURLTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "REDIS_URL", "redis://primary-host:6379")
	setEnvWithCleanup(t, "WALLET_REDIS_URL", "redis://alias-host:6379")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RedisURL != "redis://primary-host:6379" {
		t.Fatalf("expected RedisURL to prioritize REDIS_URL, got %q", cfg.RedisURL)
	}
}

func TestLoadConfig_AuthClaims(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "AUTH_JWKS_URL", "https://id.example.com/.well-known/jwks.json")
	setEnvWithCleanup(t, "AUTH_AUDIENCE", "wallet-service")
	setEnvWithCleanup(t, "AUTH_ISSUER", "https://id.example.com/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AuthJWKSURL != "https://id.example.com/.well-known/jwks.json" {
		t.Fatalf("unexpected AuthJWKSURL %q", cfg.AuthJWKSURL)
	}
	if cfg.AuthAudience != "wallet-service" {
		t.Fatalf("unexpected AuthAudience %q", cfg.AuthAudience)
	}
	if cfg.AuthIssuer != "https://id.example.com/" {
		t.Fatalf("unexpected AuthIssuer %q", cfg.AuthIssuer)
	}
}

func TestLoadConfig_NegativeWithdrawalLimitDisablesLimiting(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "WITHDRAWALS_PER_HOUR_LIMIT", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WithdrawalsPerHourLimit != 0 {
		t.Fatalf("expected negative limit to disable limiting, got %d", cfg.WithdrawalsPerHourLimit)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
