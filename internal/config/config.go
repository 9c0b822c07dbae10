package config

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Delivery channel identifiers.
const (
	ChannelSMTP     = "smtp"
	ChannelSendGrid = "sendgrid"
)

// Config holds all quota notifier configuration.
type Config struct {
	CF       CFConfig       `mapstructure:"cf"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Mail     MailConfig     `mapstructure:"mail"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CFConfig defines the platform and directory endpoints plus credentials.
// Username/password and client id/secret are alternatives; when both pairs
// are present the password grant wins.
type CFConfig struct {
	API               string `mapstructure:"api"`
	UAA               string `mapstructure:"uaa"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	SkipSSLValidation bool   `mapstructure:"skip_ssl_validation"`
}

// AlertingConfig defines the evaluation pass settings.
type AlertingConfig struct {
	ThresholdPct        int    `mapstructure:"threshold_pct"`
	PollInterval        string `mapstructure:"poll_interval"`
	InitialDelay        string `mapstructure:"initial_delay"`
	ResendCooldownHours int    `mapstructure:"resend_cooldown_hours"`
	Sender              string `mapstructure:"sender"`
}

// MailConfig selects and configures the delivery channel. Channel may be
// left empty: SMTP is assumed when a smarthost is configured, SendGrid
// otherwise.
type MailConfig struct {
	Channel       string         `mapstructure:"channel"`
	TemplatesFile string         `mapstructure:"templates_file"`
	SMTP          SMTPConfig     `mapstructure:"smtp"`
	SendGrid      SendGridConfig `mapstructure:"sendgrid"`
}

// SMTPConfig defines the SMTP smarthost settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SendGridConfig defines the SendGrid API settings.
type SendGridConfig struct {
	APIKey string `mapstructure:"api_key"`
	URL    string `mapstructure:"url"`
}

// StorageConfig defines throttle database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the optional ops HTTP endpoint. Empty listen address
// disables it.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".quota-notifier"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("alerting.threshold_pct", 80)
	v.SetDefault("alerting.poll_interval", "1h")
	v.SetDefault("alerting.initial_delay", "2s")
	v.SetDefault("alerting.resend_cooldown_hours", 24)
	v.SetDefault("cf.client_id", "cf")
	v.SetDefault("mail.smtp.port", 25)
	v.SetDefault("storage.path", filepath.Join(home, ".quota-notifier", "throttle.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("QN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports the first configuration error. Any error here is fatal at
// startup; the process must not begin scheduling with a broken config.
func (c *Config) Validate() error {
	if c.CF.API == "" {
		return fmt.Errorf("cf.api is required")
	}
	if c.CF.UAA == "" {
		return fmt.Errorf("cf.uaa is required")
	}
	if (c.CF.Username == "") != (c.CF.Password == "") {
		return fmt.Errorf("cf.username and cf.password must be set together")
	}
	if c.CF.Username == "" && (c.CF.ClientID == "" || c.CF.ClientSecret == "") {
		return fmt.Errorf("either cf.username/cf.password or cf.client_id/cf.client_secret must be set")
	}
	if c.Alerting.ThresholdPct <= 0 {
		return fmt.Errorf("alerting.threshold_pct must be positive, got %d", c.Alerting.ThresholdPct)
	}
	if c.Alerting.Sender == "" {
		return fmt.Errorf("alerting.sender is required")
	}
	if _, err := mail.ParseAddress(c.Alerting.Sender); err != nil {
		return fmt.Errorf("alerting.sender is not a valid address: %w", err)
	}
	if c.Alerting.ResendCooldownHours <= 0 {
		return fmt.Errorf("alerting.resend_cooldown_hours must be positive, got %d", c.Alerting.ResendCooldownHours)
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.InitialDelay(); err != nil {
		return err
	}
	if _, err := c.ActiveChannel(); err != nil {
		return err
	}
	return nil
}

// PollInterval returns the parsed evaluation period.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Alerting.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("alerting.poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("alerting.poll_interval must be positive, got %s", d)
	}
	return d, nil
}

// InitialDelay returns the parsed startup delay.
func (c *Config) InitialDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.Alerting.InitialDelay)
	if err != nil {
		return 0, fmt.Errorf("alerting.initial_delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("alerting.initial_delay must not be negative, got %s", d)
	}
	return d, nil
}

// Cooldown returns the resend suppression window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Alerting.ResendCooldownHours) * time.Hour
}

// ActiveChannel resolves the delivery channel for this deployment: the
// explicit mail.channel when set, otherwise SMTP when a smarthost is
// configured and SendGrid when not. The selection is static; there is no
// runtime fallback.
func (c *Config) ActiveChannel() (string, error) {
	channel := c.Mail.Channel
	if channel == "" {
		if c.Mail.SMTP.Host != "" {
			channel = ChannelSMTP
		} else {
			channel = ChannelSendGrid
		}
	}
	switch channel {
	case ChannelSMTP:
		if c.Mail.SMTP.Host == "" {
			return "", fmt.Errorf("mail.smtp.host is required for the smtp channel")
		}
		if c.Mail.SMTP.Port <= 0 {
			return "", fmt.Errorf("mail.smtp.port must be positive, got %d", c.Mail.SMTP.Port)
		}
	case ChannelSendGrid:
		if c.Mail.SendGrid.APIKey == "" {
			return "", fmt.Errorf("mail.sendgrid.api_key is required for the sendgrid channel")
		}
	default:
		return "", fmt.Errorf("mail.channel must be %q or %q, got %q", ChannelSMTP, ChannelSendGrid, channel)
	}
	return channel, nil
}
