package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string `yaml:"log-level" env-default:"info"`
	HTTPPort  string `yaml:"http-port" env-default:"8000"`
	TCPPort   string `yaml:"tcp-port" env-default:"5555"`
	StaticDir string `yaml:"static-dir" env-default:"public"`
	Redis     Redis  `yaml:"redis"`
	Game      Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// Game holds the gameplay tuning knobs. Durations are plain integers in the
// yaml file because cleanenv does not parse time.Duration values.
type Game struct {
	PollIntervalMS       int `yaml:"poll-interval-ms" env-default:"200"`
	PollCeilingSeconds   int `yaml:"poll-ceiling-seconds" env-default:"25"`
	PlayerTimeoutSeconds int `yaml:"player-timeout-seconds" env-default:"60"`
	RetentionMinutes     int `yaml:"finished-retention-minutes" env-default:"5"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Game) PollInterval() time.Duration {
	return time.Duration(that.PollIntervalMS) * time.Millisecond
}

func (that *Game) PollCeiling() time.Duration {
	return time.Duration(that.PollCeilingSeconds) * time.Second
}

func (that *Game) PlayerTimeout() time.Duration {
	return time.Duration(that.PlayerTimeoutSeconds) * time.Second
}

func (that *Game) Retention() time.Duration {
	return time.Duration(that.RetentionMinutes) * time.Minute
}
