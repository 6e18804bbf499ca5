package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type SMTPConfig struct {
	Addr string `yaml:"addr"`
	From string `yaml:"from"`
}

type Config struct {
	SMTP           SMTPConfig `yaml:"smtp"`
	SendTimeoutSec int        `yaml:"sendTimeoutSeconds"`
}

func DefaultConfig() Config {
	return Config{
		SMTP:           SMTPConfig{Addr: "localhost:25", From: "alerts@cloudgov.local"},
		SendTimeoutSec: 10,
	}
}

// DefaultSenders builds the production channel set.
func DefaultSenders(cfg Config) map[string]Sender {
	return map[string]Sender{
		"email":   NewEmailSender(cfg.SMTP),
		"chat":    NewChatSender(),
		"webhook": NewWebhookSender(),
	}
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.Addr == "" {
		return Config{}, fmt.Errorf("smtp.addr is required")
	}
	return cfg, nil
}
