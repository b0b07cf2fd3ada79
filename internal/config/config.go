// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	BotToken       string
	OpenAIKey      string
	OpenAIModel    string
	MapsKey        string
	DatabasePath   string
	CachePath      string
	LogLevel       string
	Origin         string
	DefaultChannel int64
	AllowedUsers   []int64
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	openAIKey := os.Getenv("OPENAI_KEY")
	if openAIKey == "" {
		return nil, fmt.Errorf("OPENAI_KEY is required")
	}

	mapsKey := os.Getenv("GOOGLE_MAPS_KEY")
	if mapsKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_KEY is required")
	}

	rawChannel := os.Getenv("DEFAULT_CHANNEL")
	if rawChannel == "" {
		return nil, fmt.Errorf("DEFAULT_CHANNEL is required")
	}
	defaultChannel, err := strconv.ParseInt(rawChannel, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_CHANNEL %q: %w", rawChannel, err)
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4.1-mini"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	cachePath := os.Getenv("CACHE_PATH")
	if cachePath == "" {
		cachePath = "./data/facebook_cache.txt"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	origin := os.Getenv("ORIGIN")
	if origin == "" {
		origin = "Harrisburg, PA"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		BotToken:       token,
		OpenAIKey:      openAIKey,
		OpenAIModel:    model,
		MapsKey:        mapsKey,
		DatabasePath:   dbPath,
		CachePath:      cachePath,
		LogLevel:       logLevel,
		Origin:         origin,
		DefaultChannel: defaultChannel,
		AllowedUsers:   allowedUsers,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
