package starbot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/nickstarform/starbot/starbot/database"
	"github.com/nickstarform/starbot/starbot/giveaway"
	"github.com/pelletier/go-toml/v2"
)

// LoadConfig reads the TOML file at path and then applies environment
// overrides, including those from an optional .env file.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

func DefaultConfig() Config {
	engine := giveaway.DefaultConfig()
	return Config{
		Log: LogConfig{Level: slog.LevelInfo},
		Giveaway: GiveawayConfig{
			MaxDescriptionLength: engine.MaxDescriptionLength,
			MaxWinners:           engine.MaxWinners,
			MaxDuration:          Duration{engine.MaxDuration},
			FinalizeRetries:      engine.FinalizeRetries,
			FinalizeRetryBase:    Duration{engine.FinalizeRetryBase},
			StoreTimeout:         Duration{engine.StoreTimeout},
			SweepInterval:        Duration{time.Minute},
			EntryCacheSize:       4096,
			EntryEmoji:           "🎉",
		},
	}
}

type Config struct {
	Log      LogConfig         `toml:"log"`
	Bot      BotConfig         `toml:"bot"`
	DB       database.DBConfig `toml:"db"`
	Spaces   SpacesConfig      `toml:"spaces"`
	Giveaway GiveawayConfig    `toml:"giveaway"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token" env:"BOT_TOKEN"`
}

type LogConfig struct {
	Level slog.Level `toml:"level" env:"LOG_LEVEL"`
}

// SpacesConfig points at the S3 compatible bucket giveaway archives are
// written to. Archiving is off when Bucket is empty.
type SpacesConfig struct {
	Key         string `toml:"key" env:"SPACES_KEY"`
	Secret      string `toml:"secret" env:"SPACES_SECRET"`
	Region      string `toml:"region" env:"SPACES_REGION"`
	Bucket      string `toml:"bucket" env:"SPACES_BUCKET"`
	ArchiveRoot string `toml:"archive_root"`
}

type GiveawayConfig struct {
	MaxDescriptionLength int      `toml:"max_description_length"`
	MaxWinners           int      `toml:"max_winners"`
	MaxDuration          Duration `toml:"max_duration"`
	FinalizeRetries      int      `toml:"finalize_retries"`
	FinalizeRetryBase    Duration `toml:"finalize_retry_base"`
	StoreTimeout         Duration `toml:"store_timeout"`
	SweepInterval        Duration `toml:"sweep_interval" env:"GIVEAWAY_SWEEP_INTERVAL"`
	PurgeOnTeardown      bool     `toml:"purge_on_teardown" env:"GIVEAWAY_PURGE_ON_TEARDOWN"`
	EntryCacheSize       int      `toml:"entry_cache_size"`
	EntryEmoji           string   `toml:"entry_emoji"`
}

func (c GiveawayConfig) Engine() giveaway.Config {
	return giveaway.Config{
		MaxDescriptionLength: c.MaxDescriptionLength,
		MaxWinners:           c.MaxWinners,
		MaxDuration:          c.MaxDuration.Duration,
		FinalizeRetries:      c.FinalizeRetries,
		FinalizeRetryBase:    c.FinalizeRetryBase.Duration,
		StoreTimeout:         c.StoreTimeout.Duration,
		PurgeOnTeardown:      c.PurgeOnTeardown,
	}
}

// Duration reads values like "90s" or "720h" from TOML and the environment.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
