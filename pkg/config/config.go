// Package config loads the bot configuration document and credentials.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// TopicPair maps a play-by-post topic to the chat topic that receives its
// inactivity alerts.
type TopicPair struct {
	Name        string  `mapstructure:"name"`
	PBPTopicID  int64   `mapstructure:"pbp_topic_id"`
	PBPTopicIDs []int64 `mapstructure:"pbp_topic_ids"`
	ChatTopicID int64   `mapstructure:"chat_topic_id"`
	GMUserIDs   []int64 `mapstructure:"gm_user_ids"`
}

// AllPBPTopicIDs returns every topic id this pair has ever used: the
// current one plus any historical ids (topics recreated over time keep
// their old ids in exports).
func (p TopicPair) AllPBPTopicIDs() []int64 {
	ids := make([]int64, 0, len(p.PBPTopicIDs)+1)
	if p.PBPTopicID != 0 {
		ids = append(ids, p.PBPTopicID)
	}
	for _, id := range p.PBPTopicIDs {
		if id != p.PBPTopicID {
			ids = append(ids, id)
		}
	}
	return ids
}

// PrimaryID returns the topic id used for live tracking.
func (p TopicPair) PrimaryID() int64 {
	if p.PBPTopicID != 0 {
		return p.PBPTopicID
	}
	if len(p.PBPTopicIDs) > 0 {
		return p.PBPTopicIDs[0]
	}
	return 0
}

// GMSet resolves the GM user ids for this pair: the per-pair override if
// present, otherwise the global default.
func (p TopicPair) GMSet(global []int64) map[string]bool {
	ids := p.GMUserIDs
	if len(ids) == 0 {
		ids = global
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[strconv.FormatInt(id, 10)] = true
	}
	return set
}

// Config is the full configuration document plus credentials from the
// environment.
type Config struct {
	GroupID         int64       `mapstructure:"group_id"`
	AlertAfterHours int         `mapstructure:"alert_after_hours"`
	CaptureLogs     bool        `mapstructure:"capture_logs"`
	GMUserIDs       []int64     `mapstructure:"gm_user_ids"`
	TopicPairs      []TopicPair `mapstructure:"topic_pairs"`

	// credentials, not part of the document
	TelegramToken string `mapstructure:"-"`
	GistToken     string `mapstructure:"-"`
	GistID        string `mapstructure:"-"`
}

// Load reads the configuration document at path (YAML or JSON) and fills
// in credentials from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("alert_after_hours", 4)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.GistToken = os.Getenv("GIST_TOKEN")
	cfg.GistID = os.Getenv("GIST_ID")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the system assumes. PBP
// topic ids must be unique across pairs; a duplicate would make message
// attribution ambiguous.
func (c *Config) Validate() error {
	if len(c.TopicPairs) == 0 {
		return fmt.Errorf("config has no topic_pairs")
	}

	seen := make(map[int64]string)
	for _, pair := range c.TopicPairs {
		if pair.Name == "" {
			return fmt.Errorf("topic pair missing name")
		}
		for _, id := range pair.AllPBPTopicIDs() {
			if other, ok := seen[id]; ok && other != pair.Name {
				return fmt.Errorf("pbp topic id %d claimed by both %q and %q", id, other, pair.Name)
			}
			seen[id] = pair.Name
		}
	}

	return nil
}
