// Package config loads the environment variables this service needs to
// start, binding them with viper after an optional .env file is loaded
// via godotenv for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	DANodeAuthToken   string
	DANodeHTTP        string
	ProverAPIKey      string
	ProverAPIURL      string
	DBPath            string
	ServiceSocket     string
	MetricsSocket     string
	ProofGenTimeout   time.Duration
	ExpectedGuestHash string // optional; empty skips the startup pinning check
}

// Load reads .env (if present) then the process environment, applying
// viper defaults for the three values the deployment commonly leaves
// unset (SERVICE_SOCKET, METRICS_SOCKET, PROOF_GEN_TIMEOUT_SECONDS).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("config: failed to load .env file")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVICE_SOCKET", "0.0.0.0:50051")
	v.SetDefault("METRICS_SOCKET", "0.0.0.0:9090")
	v.SetDefault("PROOF_GEN_TIMEOUT_SECONDS", 900)

	required := []string{"DA_NODE_AUTH_TOKEN", "DA_NODE_HTTP", "PROVER_API_KEY", "PROVER_API_URL", "DB_PATH"}
	for _, key := range required {
		if v.GetString(key) == "" {
			return Config{}, fmt.Errorf("config: required environment variable %s is unset", key)
		}
	}

	timeoutSeconds := v.GetInt("PROOF_GEN_TIMEOUT_SECONDS")
	if timeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("config: PROOF_GEN_TIMEOUT_SECONDS must be positive, got %d", timeoutSeconds)
	}

	return Config{
		DANodeAuthToken:   v.GetString("DA_NODE_AUTH_TOKEN"),
		DANodeHTTP:        v.GetString("DA_NODE_HTTP"),
		ProverAPIKey:      v.GetString("PROVER_API_KEY"),
		ProverAPIURL:      v.GetString("PROVER_API_URL"),
		DBPath:            v.GetString("DB_PATH"),
		ServiceSocket:     v.GetString("SERVICE_SOCKET"),
		MetricsSocket:     v.GetString("METRICS_SOCKET"),
		ProofGenTimeout:   time.Duration(timeoutSeconds) * time.Second,
		ExpectedGuestHash: v.GetString("EXPECTED_GUEST_PROGRAM_HASH"),
	}, nil
}
