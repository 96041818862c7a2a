package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BotConfig describes an external program that plays for one player.
type BotConfig struct {
	Player      string            `yaml:"player" json:"player"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	// Timeout bounds one decision. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ConfigFile represents the structure of bots.yaml
type ConfigFile struct {
	Bots []BotConfig `yaml:"bots" json:"bots"`
}

// LoadBots reads a configuration file (YAML or JSON) and returns the bots
// keyed by player id.
func LoadBots(path string) (map[string]BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bots config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	bots := make(map[string]BotConfig, len(cfg.Bots))
	for _, bot := range cfg.Bots {
		if bot.Player == "" || bot.Command == "" {
			return nil, fmt.Errorf("bot entry needs a player and a command: %+v", bot)
		}
		if _, dup := bots[bot.Player]; dup {
			return nil, fmt.Errorf("player %q has more than one bot", bot.Player)
		}
		bots[bot.Player] = bot
	}
	return bots, nil
}
