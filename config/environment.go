package config

import (
	"os"
	"strings"
)

// Deployment environments recognized by tradekit. APP_ENV selects which
// configuration file LoadConfig prefers.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

const (
	appEnvVar         = "APP_ENV"
	defaultConfigPath = "config.yml"
)

var envAliases = map[string]string{
	"dev":  EnvDevelopment,
	"stag": EnvStaging,
	"prod": EnvProduction,
}

// AppEnvironment returns the canonical deployment environment from
// APP_ENV. Unset means development; common abbreviations are accepted.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvDevelopment
	}
	if canonical, ok := envAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveConfigPath picks the configuration file for the current
// environment. An explicit non-default path always wins; otherwise an
// existing config.<env>.yml is preferred over the default file.
func resolveConfigPath(path string) string {
	if path != "" && path != defaultConfigPath {
		return path
	}
	envPath := "config." + AppEnvironment() + ".yml"
	if _, err := os.Stat(envPath); err == nil {
		return envPath
	}
	return defaultConfigPath
}
