package config

import "github.com/caarlos0/env/v11"

// EnvPrefix is prepended to every variable name declared in Config tags.
const EnvPrefix = "USERSVC_"

// parseEnv overlays Config with USERSVC_* environment variables. Unset
// variables leave the current value untouched. Malformed values panic,
// as do other configuration errors.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
