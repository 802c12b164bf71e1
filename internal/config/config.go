// Package config loads the gateway's settings from the environment (and
// an optional .env file), following the same plain env-var approach the
// rest of this codebase's ancestry uses rather than a config-file parser.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every setting the gateway needs to start.
type Config struct {
	// SSHListenAddr is where the SSH gateway accepts developer
	// connections, built from SSH_PORT.
	SSHListenAddr string
	// HTTPListenAddr is where the HTTP gateway accepts inbound tunnel
	// traffic, built from HTTP_PORT.
	HTTPListenAddr string
	// Domain is the apex domain tunnels are registered under, e.g.
	// "tunnels.example.com". Defaults to "localhost:<http_port>".
	Domain string
	// HostKeyPath is where the SSH gateway's persistent host key lives.
	// Empty means no PRIVATE_KEY_FILE was configured: a fresh key is
	// generated in memory for this run and never written to disk.
	HostKeyPath string

	// AuthzEndpoint is the forward-auth URL checked for non-public
	// tunnels.
	AuthzEndpoint string

	// LDAPAddress is the LDAP server URL, e.g. "ldap://ldap.example.com".
	LDAPAddress string
	// LDAPBase is the search base DN for user lookups.
	LDAPBase string
	// LDAPBindDN is the DN the gateway binds as before searching.
	LDAPBindDN string
	// LDAPPassword is the bind password. Prefer LDAP_PASSWORD_FILE in
	// production so the secret isn't stored in plain env.
	LDAPPassword string

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string
	// LogFormat is either "json" or "console".
	LogFormat string
}

// defaultHTTPPort and defaultSSHPort match spec.md §6's documented
// defaults.
const (
	defaultHTTPPort = "3000"
	defaultSSHPort  = "2222"
)

// Load reads Config from the environment, loading a .env file first if
// one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	httpPort := getEnv("HTTP_PORT", defaultHTTPPort)
	sshPort := getEnv("SSH_PORT", defaultSSHPort)

	cfg := &Config{
		SSHListenAddr:  ":" + sshPort,
		HTTPListenAddr: ":" + httpPort,
		Domain:         getEnv("TUNNEL_DOMAIN", "localhost:"+httpPort),
		HostKeyPath:    getEnv("PRIVATE_KEY_FILE", ""),

		AuthzEndpoint: getEnv("AUTHZ_ENDPOINT", ""),

		LDAPAddress: getEnv("LDAP_ADDRESS", ""),
		LDAPBase:    getEnv("LDAP_BASE", ""),
		LDAPBindDN:  getEnv("LDAP_BIND_DN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	password, err := loadLDAPPassword()
	if err != nil {
		return nil, err
	}
	cfg.LDAPPassword = password

	if cfg.AuthzEndpoint == "" {
		return nil, fmt.Errorf("config: AUTHZ_ENDPOINT is required")
	}
	if cfg.LDAPAddress == "" {
		return nil, fmt.Errorf("config: LDAP_ADDRESS is required")
	}
	if cfg.LDAPBase == "" {
		return nil, fmt.Errorf("config: LDAP_BASE is required")
	}
	if cfg.LDAPBindDN == "" {
		return nil, fmt.Errorf("config: LDAP_BIND_DN is required")
	}
	if cfg.LDAPPassword == "" {
		return nil, fmt.Errorf("config: LDAP_PASSWORD or LDAP_PASSWORD_FILE is required")
	}

	return cfg, nil
}

// loadLDAPPassword prefers LDAP_PASSWORD_FILE, falling back to the literal
// LDAP_PASSWORD value when no file is configured. Returns "" with no error
// when neither is set, so Load can report the combined requirement once.
func loadLDAPPassword() (string, error) {
	if path := getEnv("LDAP_PASSWORD_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("config: read LDAP_PASSWORD_FILE: %w", err)
		}
		return trimNewline(string(data)), nil
	}
	return getEnv("LDAP_PASSWORD", ""), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

