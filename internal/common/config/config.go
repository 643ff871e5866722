package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

type MQ struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
}

type CommandAPI struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Display struct {
	TruckID                 string `yaml:"truck_id"`
	UserID                  string `yaml:"user_id"`
	ListenPort              int    `yaml:"listen_port"`
	LocalDBPath             string `yaml:"local_db_path"`
	ServerOffsetMs          int64  `yaml:"server_offset_ms"`
	TickMs                  int    `yaml:"tick_ms"`
	RankDebounceMs          int    `yaml:"rank_debounce_ms"`
	SubscribeTimeoutSeconds int    `yaml:"subscribe_timeout_seconds"`
}

type App struct {
	Database DB         `yaml:"database"`
	Rabbit   MQ         `yaml:"rabbitmq"`
	Commands CommandAPI `yaml:"command_api"`
	Display  Display    `yaml:"display"`
}

// Load reads and validates the YAML config, filling defaults for
// optional display knobs.
func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	var a App
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse config: %w", err)
	}
	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, errors.New("invalid config: missing database/rabbitmq host")
	}
	if a.Commands.BaseURL == "" {
		return App{}, errors.New("invalid config: missing command_api.base_url")
	}
	if a.Display.TruckID == "" {
		return App{}, errors.New("invalid config: missing display.truck_id")
	}
	a.applyDefaults()
	return a, nil
}

func (a *App) applyDefaults() {
	if a.Commands.TimeoutSeconds <= 0 {
		a.Commands.TimeoutSeconds = 10
	}
	if a.Display.ListenPort == 0 {
		a.Display.ListenPort = 3003
	}
	if a.Display.LocalDBPath == "" {
		a.Display.LocalDBPath = "kds.db"
	}
	if a.Display.TickMs <= 0 {
		a.Display.TickMs = 1000
	}
	if a.Display.RankDebounceMs <= 0 {
		a.Display.RankDebounceMs = 600
	}
	if a.Display.SubscribeTimeoutSeconds <= 0 {
		a.Display.SubscribeTimeoutSeconds = 8
	}
}

func (c CommandAPI) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (d Display) Tick() time.Duration {
	return time.Duration(d.TickMs) * time.Millisecond
}

func (d Display) RankDebounce() time.Duration {
	return time.Duration(d.RankDebounceMs) * time.Millisecond
}

func (d Display) SubscribeTimeout() time.Duration {
	return time.Duration(d.SubscribeTimeoutSeconds) * time.Second
}

// FindConfig probes the conventional locations.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
