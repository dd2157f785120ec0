package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"tutoriasBot/internal/mailer"
	"tutoriasBot/internal/repository/postgres"
)

type Config struct {
	Env          string             `yaml:"env" env-default:"local"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Postgres     postgres.Config    `yaml:"postgres"`
	SMTP         mailer.Config      `yaml:"smtp"`
	Registration RegistrationConfig `yaml:"registration"`
	Conversation ConversationConfig `yaml:"conversation"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
}

type RegistrationConfig struct {
	EmailDomain     string        `yaml:"email_domain" env-default:"correo.ugr.es"`
	CodeTTL         time.Duration `yaml:"code_ttl" env-default:"3m"`
	MaxCodeAttempts int           `yaml:"max_code_attempts" env-default:"3"`
	LockoutDuration time.Duration `yaml:"lockout_duration" env-default:"30m"`
}

type ConversationConfig struct {
	TTL           time.Duration `yaml:"ttl" env-default:"1h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"5m"`
	BanDuration   time.Duration `yaml:"ban_duration" env-default:"60s"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/config.yaml"
	}

	return res
}
