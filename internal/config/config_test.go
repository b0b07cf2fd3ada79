package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func baseEnv() map[string]string {
	return map[string]string{
		"BOT_TOKEN":       "tok",
		"OPENAI_KEY":      "sk-test",
		"GOOGLE_MAPS_KEY": "maps-test",
		"DEFAULT_CHANNEL": "1000",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing bot token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "missing openai key",
			env: map[string]string{
				"BOT_TOKEN":       "tok",
				"GOOGLE_MAPS_KEY": "maps-test",
				"DEFAULT_CHANNEL": "1000",
			},
			wantErr: true,
		},
		{
			name: "missing maps key",
			env: map[string]string{
				"BOT_TOKEN":       "tok",
				"OPENAI_KEY":      "sk-test",
				"DEFAULT_CHANNEL": "1000",
			},
			wantErr: true,
		},
		{
			name: "non-numeric default channel",
			env: func() map[string]string {
				env := baseEnv()
				env["DEFAULT_CHANNEL"] = "general"
				return env
			}(),
			wantErr: true,
		},
		{
			name: "required only, defaults applied",
			env:  baseEnv(),
			want: &Config{
				BotToken:       "tok",
				OpenAIKey:      "sk-test",
				OpenAIModel:    "gpt-4.1-mini",
				MapsKey:        "maps-test",
				DatabasePath:   "./data/bot.db",
				CachePath:      "./data/facebook_cache.txt",
				LogLevel:       "info",
				Origin:         "Harrisburg, PA",
				DefaultChannel: 1000,
				AllowedUsers:   nil,
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"BOT_TOKEN":       "tok",
				"OPENAI_KEY":      "sk-test",
				"OPENAI_MODEL":    "gpt-4o",
				"GOOGLE_MAPS_KEY": "maps-test",
				"DEFAULT_CHANNEL": "42",
				"DATABASE_PATH":   "/tmp/bot.db",
				"CACHE_PATH":      "/tmp/cache.txt",
				"LOG_LEVEL":       "debug",
				"ORIGIN":          "Lancaster, PA",
				"ALLOWED_USERS":   "111,222,333",
			},
			want: &Config{
				BotToken:       "tok",
				OpenAIKey:      "sk-test",
				OpenAIModel:    "gpt-4o",
				MapsKey:        "maps-test",
				DatabasePath:   "/tmp/bot.db",
				CachePath:      "/tmp/cache.txt",
				LogLevel:       "debug",
				Origin:         "Lancaster, PA",
				DefaultChannel: 42,
				AllowedUsers:   []int64{111, 222, 333},
			},
		},
		{
			name: "allowed users with spaces",
			env: func() map[string]string {
				env := baseEnv()
				env["ALLOWED_USERS"] = " 10 , 20 , "
				return env
			}(),
			want: &Config{
				BotToken:       "tok",
				OpenAIKey:      "sk-test",
				OpenAIModel:    "gpt-4.1-mini",
				MapsKey:        "maps-test",
				DatabasePath:   "./data/bot.db",
				CachePath:      "./data/facebook_cache.txt",
				LogLevel:       "info",
				Origin:         "Harrisburg, PA",
				DefaultChannel: 1000,
				AllowedUsers:   []int64{10, 20},
			},
		},
		{
			name: "invalid allowed user",
			env: func() map[string]string {
				env := baseEnv()
				env["ALLOWED_USERS"] = "10,abc"
				return env
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			for _, k := range []string{
				"BOT_TOKEN", "OPENAI_KEY", "OPENAI_MODEL", "GOOGLE_MAPS_KEY",
				"DEFAULT_CHANNEL", "DATABASE_PATH", "CACHE_PATH", "LOG_LEVEL",
				"ORIGIN", "ALLOWED_USERS",
			} {
				if _, ok := tt.env[k]; !ok {
					t.Setenv(k, "")
				}
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		userID  int64
		want    bool
	}{
		{name: "empty list permits everyone", allowed: nil, userID: 99, want: true},
		{name: "listed user", allowed: []int64{1, 2}, userID: 2, want: true},
		{name: "unlisted user", allowed: []int64{1, 2}, userID: 3, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{AllowedUsers: tt.allowed}
			if got := c.IsUserAllowed(tt.userID); got != tt.want {
				t.Errorf("IsUserAllowed(%d) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}
