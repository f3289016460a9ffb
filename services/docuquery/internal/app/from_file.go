package app

import (
	"docuquery/pkg/service"
	"docuquery/services/docuquery/internal/config"
)

// ConfigFromFile converts the loaded file config into an app config.
func ConfigFromFile(fc config.FileConfig) (Config, error) {
	sessionTTL, err := config.ParseDuration("sessionTTL", fc.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	latencyMin, err := config.ParseDuration("latencyMin", fc.LatencyMin)
	if err != nil {
		return Config{}, err
	}
	latencyMax, err := config.ParseDuration("latencyMax", fc.LatencyMax)
	if err != nil {
		return Config{}, err
	}
	tick, err := config.ParseDuration("tickInterval", fc.TickInterval)
	if err != nil {
		return Config{}, err
	}
	return Config{
		DatabaseURL:    fc.DatabaseURL,
		RedisAddr:      fc.RedisAddr,
		RedisPassword:  fc.RedisPassword,
		JWTSecret:      fc.JWTSecret,
		SessionTTL:     sessionTTL,
		DataDir:        fc.DataDir,
		Seed:           fc.SeedEnabled(),
		MinioEndpoint:  fc.MinioEndpoint,
		MinioAccessKey: fc.MinioAccessKey,
		MinioSecretKey: fc.MinioSecretKey,
		MinioBucket:    fc.MinioBucket,
		MinioUseSSL:    fc.MinioUseSSL,
		Services: service.Config{
			Latency: service.Latency{Min: latencyMin, Max: latencyMax},
			Simulator: service.SimulatorConfig{
				Interval:     tick,
				PagesPerTick: fc.PagesPerTick,
				FailureRate:  fc.FailureRate,
			},
			Documents: service.DocumentOptions{
				MaxUploadBytes:    fc.MaxUploadBytes,
				AllowedExtensions: fc.AllowedExtensions,
			},
		},
	}, nil
}
