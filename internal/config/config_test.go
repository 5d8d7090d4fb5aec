package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/some/path"},
		Server: ServerConfig{PublicURL: "http://localhost:8080"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true}, // case insensitive
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data base path cannot be empty")
}

func TestValidate_PublicURL(t *testing.T) {
	cfg := validConfig()
	cfg.Server.PublicURL = "not a url"

	assert.Error(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Data.BasePath)
	assert.Equal(t, filepath.Join(dir, "db"), cfg.Data.DBPath())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, 30*time.Minute, cfg.Auth.EmailTokenDuration)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.False(t, cfg.Mail.Enabled())
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ACCESS_TOKEN_DURATION", "5m")

	cfg, err := Load([]string{"-data-path", dir, "-port", "9100", "-env-file", filepath.Join(dir, "none")})
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenDuration)
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()

	_, err := Load([]string{"-data-path", dir, "-email-token-duration", "soon", "-env-file", filepath.Join(dir, "none")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email token duration")
}

func TestExpandDataPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty uses default", "", filepath.Join(homeDir, "Tagbox", "data")},
		{"tilde", "~/tagbox", filepath.Join(homeDir, "tagbox")},
		{"absolute", "/srv/tagbox", "/srv/tagbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Data: DataConfig{BasePath: tt.in}}
			require.NoError(t, cfg.expandDataPath())
			assert.Equal(t, tt.want, cfg.Data.BasePath)
		})
	}
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TAGBOX_TEST_KEY", "default-value"))

	t.Setenv("TAGBOX_TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TAGBOX_TEST_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "TAGBOX_NONEXISTENT_KEY", "default-value"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")

	content := `# Tagbox
TAGBOX_ENVFILE_A=staging

TAGBOX_ENVFILE_B="quoted value"
TAGBOX_ENVFILE_KEEP=from-file
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	t.Setenv("TAGBOX_ENVFILE_KEEP", "from-env")
	t.Setenv("TAGBOX_ENVFILE_A", "")
	t.Setenv("TAGBOX_ENVFILE_B", "")

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("TAGBOX_ENVFILE_A"))
	assert.Equal(t, "quoted value", os.Getenv("TAGBOX_ENVFILE_B"))
	assert.Equal(t, "from-env", os.Getenv("TAGBOX_ENVFILE_KEEP"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VALID=1\nINVALID LINE\n"), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
