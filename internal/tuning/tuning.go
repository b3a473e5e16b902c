package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`

	FeedURL            string `yaml:"feed_url"`
	FeedRefreshSeconds int    `yaml:"feed_refresh_seconds"`
	FeedTimeoutSeconds int    `yaml:"feed_timeout_seconds"`

	InboxSize      int `yaml:"inbox_size"`
	ClientQueueMax int `yaml:"client_queue_max"`

	SingleInstancePerType bool `yaml:"single_instance_per_type"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:       "1.0",
		ListenAddr:            ":8080",
		DataDir:               "./data",
		FeedRefreshSeconds:    300,
		FeedTimeoutSeconds:    10,
		InboxSize:             256,
		ClientQueueMax:        64,
		SingleInstancePerType: true,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
