package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"TUNNEL_DOMAIN", "AUTHZ_ENDPOINT", "LDAP_ADDRESS", "LDAP_BASE",
		"LDAP_BIND_DN", "LDAP_PASSWORD", "LDAP_PASSWORD_FILE",
		"HTTP_PORT", "SSH_PORT", "PRIVATE_KEY_FILE",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTHZ_ENDPOINT", "http://auth.internal/verify")
	t.Setenv("LDAP_ADDRESS", "ldap://ldap.internal")
	t.Setenv("LDAP_BASE", "dc=example,dc=com")
	t.Setenv("LDAP_BIND_DN", "cn=burrow,dc=example,dc=com")
	t.Setenv("LDAP_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SSHListenAddr != ":2222" {
		t.Errorf("SSHListenAddr = %q, want :2222", cfg.SSHListenAddr)
	}
	if cfg.HTTPListenAddr != ":3000" {
		t.Errorf("HTTPListenAddr = %q, want :3000", cfg.HTTPListenAddr)
	}
	if cfg.Domain != "localhost:3000" {
		t.Errorf("Domain = %q, want localhost:3000", cfg.Domain)
	}
	if cfg.HostKeyPath != "" {
		t.Errorf("HostKeyPath = %q, want empty (ephemeral key)", cfg.HostKeyPath)
	}
	if cfg.LDAPPassword != "secret" {
		t.Errorf("LDAPPassword = %q, want secret", cfg.LDAPPassword)
	}
}

func TestLoad_CustomPortsDeriveDomainDefault(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SSH_PORT", "2022")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPListenAddr != ":9090" {
		t.Errorf("HTTPListenAddr = %q, want :9090", cfg.HTTPListenAddr)
	}
	if cfg.SSHListenAddr != ":2022" {
		t.Errorf("SSHListenAddr = %q, want :2022", cfg.SSHListenAddr)
	}
	if cfg.Domain != "localhost:9090" {
		t.Errorf("Domain = %q, want localhost:9090", cfg.Domain)
	}
}

func TestLoad_ExplicitDomainOverridesDefault(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("TUNNEL_DOMAIN", "tunnels.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Domain != "tunnels.example.com" {
		t.Errorf("Domain = %q, want tunnels.example.com", cfg.Domain)
	}
}

func TestLoad_MissingAuthzEndpointFails(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("AUTHZ_ENDPOINT", "")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want error for missing AUTHZ_ENDPOINT")
	}
}

func TestLoad_PasswordFileTakesPrecedence(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	path := filepath.Join(t.TempDir(), "ldap_password")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write password file: %v", err)
	}
	t.Setenv("LDAP_PASSWORD_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LDAPPassword != "from-file" {
		t.Fatalf("LDAPPassword = %q, want from-file", cfg.LDAPPassword)
	}
}

func TestLoad_MissingLDAPPasswordFails(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("LDAP_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want error for missing LDAP password")
	}
}
