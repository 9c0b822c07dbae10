package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudops-tools/quota-notifier/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *config.Config {
	return &config.Config{
		CF: config.CFConfig{
			API:      "https://api.sys.example.com",
			UAA:      "https://uaa.sys.example.com",
			Username: "notifier",
			Password: "secret",
		},
		Alerting: config.AlertingConfig{
			ThresholdPct:        80,
			PollInterval:        "1h",
			InitialDelay:        "2s",
			ResendCooldownHours: 24,
			Sender:              "ops@example.com",
		},
		Mail: config.MailConfig{
			SMTP: config.SMTPConfig{Host: "mail.example.com", Port: 25},
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
cf:
  api: https://api.sys.example.com
  uaa: https://uaa.sys.example.com
alerting:
  sender: ops@example.com
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Alerting.ThresholdPct)
	assert.Equal(t, "1h", cfg.Alerting.PollInterval)
	assert.Equal(t, "2s", cfg.Alerting.InitialDelay)
	assert.Equal(t, 24, cfg.Alerting.ResendCooldownHours)
	assert.Equal(t, "cf", cfg.CF.ClientID)
	assert.Equal(t, 25, cfg.Mail.SMTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
cf:
  api: https://api.sys.example.com
  uaa: https://uaa.sys.example.com
  username: notifier
  password: secret
alerting:
  threshold_pct: 90
  poll_interval: 30m
  resend_cooldown_hours: 12
  sender: Platform Ops <ops@example.com>
mail:
  smtp:
    host: mail.example.com
    port: 587
storage:
  path: /var/lib/quota-notifier/throttle.db
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 90, cfg.Alerting.ThresholdPct)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, "/var/lib/quota-notifier/throttle.db", cfg.Storage.Path)

	interval, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, interval)
	assert.Equal(t, 12*time.Hour, cfg.Cooldown())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QN_ALERTING_THRESHOLD_PCT", "95")
	path := writeConfig(t, `
cf:
  api: https://api.sys.example.com
  uaa: https://uaa.sys.example.com
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 95, cfg.Alerting.ThresholdPct)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"missing api", func(c *config.Config) { c.CF.API = "" }, "cf.api"},
		{"missing uaa", func(c *config.Config) { c.CF.UAA = "" }, "cf.uaa"},
		{"password without username", func(c *config.Config) { c.CF.Username = "" }, "must be set together"},
		{"no credentials", func(c *config.Config) {
			c.CF.Username, c.CF.Password = "", ""
		}, "client_id"},
		{"client credentials alone are fine", func(c *config.Config) {
			c.CF.Username, c.CF.Password = "", ""
			c.CF.ClientID, c.CF.ClientSecret = "notifier-client", "secret"
		}, ""},
		{"zero threshold", func(c *config.Config) { c.Alerting.ThresholdPct = 0 }, "threshold_pct"},
		{"missing sender", func(c *config.Config) { c.Alerting.Sender = "" }, "sender"},
		{"malformed sender", func(c *config.Config) { c.Alerting.Sender = "not an address" }, "sender"},
		{"zero cooldown", func(c *config.Config) { c.Alerting.ResendCooldownHours = 0 }, "resend_cooldown_hours"},
		{"bad poll interval", func(c *config.Config) { c.Alerting.PollInterval = "soon" }, "poll_interval"},
		{"negative initial delay", func(c *config.Config) { c.Alerting.InitialDelay = "-5s" }, "initial_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestActiveChannel(t *testing.T) {
	t.Run("explicit smtp", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mail.Channel = config.ChannelSMTP
		channel, err := cfg.ActiveChannel()
		require.NoError(t, err)
		assert.Equal(t, config.ChannelSMTP, channel)
	})

	t.Run("defaults to smtp when a smarthost is set", func(t *testing.T) {
		cfg := validConfig()
		channel, err := cfg.ActiveChannel()
		require.NoError(t, err)
		assert.Equal(t, config.ChannelSMTP, channel)
	})

	t.Run("defaults to sendgrid without a smarthost", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mail.SMTP.Host = ""
		cfg.Mail.SendGrid.APIKey = "sg-key"
		channel, err := cfg.ActiveChannel()
		require.NoError(t, err)
		assert.Equal(t, config.ChannelSendGrid, channel)
	})

	t.Run("sendgrid requires an api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mail.SMTP.Host = ""
		_, err := cfg.ActiveChannel()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})

	t.Run("explicit smtp requires a host", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mail.Channel = config.ChannelSMTP
		cfg.Mail.SMTP.Host = ""
		_, err := cfg.ActiveChannel()
		assert.Error(t, err)
	})

	t.Run("unknown channel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mail.Channel = "carrier-pigeon"
		_, err := cfg.ActiveChannel()
		assert.Error(t, err)
	})
}
