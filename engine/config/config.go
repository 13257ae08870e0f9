// Package config reads the process configuration from the environment.
// The job has no CLI flags; every knob is an environment variable, with
// defaults matching a fast single-instance deployment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Run modes.
const (
	ModeFetchReply = "fetch_reply"
	ModeReplyQueue = "reply_queue"
)

// Config is the full environment-sourced configuration, built once at
// startup and read-only afterwards.
type Config struct {
	DataDir string // directory holding profiles.txt, accounts.json, state files, images/

	ScrapeToken   string // bearer token for the scraping backend
	CompletionKey string // bearer token for the completion backend
	NATSURL       string // optional; empty disables event publishing

	Mode        string
	DryRun      bool
	AttachMedia bool
	RankRecent  bool // recency-ranked selection; false keeps encounter order

	MinDelay    int // seconds, inclusive lower bound of the inter-post delay
	MaxDelay    int // seconds, inclusive upper bound
	MaxParallel int // commentary worker pool width

	ProfilesPerRun   int
	RepliesPerRun    int
	PostsPerProfile  int
	RecentMemorySize int
}

// FromEnv builds a Config from the process environment.
func FromEnv() Config {
	return Config{
		DataDir: envOr("CHORUS_DATA_DIR", "."),

		ScrapeToken:   os.Getenv("APIFY_API_TOKEN"),
		CompletionKey: os.Getenv("PERPLEXITY_API"),
		NATSURL:       os.Getenv("CHORUS_NATS_URL"),

		Mode:        envOr("MODE", ModeFetchReply),
		DryRun:      envBool("DRY_RUN", false),
		AttachMedia: envBool("ATTACH_MEDIA", false),
		RankRecent:  envBool("CHORUS_RANK_RECENT", true),

		MinDelay:    envInt("MIN_DELAY", 1),
		MaxDelay:    envInt("MAX_DELAY", 5),
		MaxParallel: envInt("MAX_PARALLEL", 5),

		ProfilesPerRun:   envInt("PROFILES_PER_RUN", 30),
		RepliesPerRun:    envInt("REPLIES_PER_RUN", 10),
		PostsPerProfile:  1,
		RecentMemorySize: 20,
	}
}

// File locations under DataDir.

func (c Config) ProfilesFile() string { return filepath.Join(c.DataDir, "profiles.txt") }
func (c Config) AccountsFile() string { return filepath.Join(c.DataDir, "accounts.json") }
func (c Config) RecentFile() string   { return filepath.Join(c.DataDir, "recent_profiles.json") }
func (c Config) LogFile() string      { return filepath.Join(c.DataDir, "bot_logs.json") }
func (c Config) QueueFile() string    { return filepath.Join(c.DataDir, "reply_queue.json") }
func (c Config) ImagesDir() string    { return filepath.Join(c.DataDir, "images") }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
