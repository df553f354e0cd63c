// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Settings are the runtime knobs of the scheduler, the workers and the
// communication session.
type Settings struct {
	ApplicationName string `yaml:"applicationName"`
	APIAddress      string `yaml:"apiAddress"`

	// StatusBarEnabled is the capability flag gating the status bar worker.
	StatusBarEnabled bool          `yaml:"statusBarEnabled"`
	StatusBarRefresh time.Duration `yaml:"statusBarRefresh"`

	CommandWait       time.Duration `yaml:"commandWait"`
	KeepAliveInterval time.Duration `yaml:"keepAliveInterval"`
	// at most RespawnBurst respawns per slot, refilled at RespawnRate per second
	RespawnBurst int     `yaml:"respawnBurst"`
	RespawnRate  float64 `yaml:"respawnRate"`

	RecvTimeout           time.Duration `yaml:"recvTimeout"`
	HandshakePollInterval time.Duration `yaml:"handshakePollInterval"`
	HandshakeMocked       bool          `yaml:"handshakeMocked"`
	ConnectWindow         time.Duration `yaml:"connectWindow"`
	BootWindow            time.Duration `yaml:"bootWindow"`
	CheckReadTimeout      time.Duration `yaml:"checkReadTimeout"`
	PumpInterval          time.Duration `yaml:"pumpInterval"`

	ParamsPath string `yaml:"paramsPath"`
}

func DefaultSettings() Settings {
	return Settings{
		ApplicationName:       "main",
		APIAddress:            "127.0.0.1:8080",
		StatusBarEnabled:      true,
		StatusBarRefresh:      time.Second,
		CommandWait:           200 * time.Millisecond,
		KeepAliveInterval:     5 * time.Second,
		RespawnBurst:          3,
		RespawnRate:           0.1,
		RecvTimeout:           30 * time.Second,
		HandshakePollInterval: 200 * time.Millisecond,
		ConnectWindow:         15 * time.Second,
		BootWindow:            180 * time.Second,
		CheckReadTimeout:      50 * time.Millisecond,
		PumpInterval:          10 * time.Millisecond,
		ParamsPath:            "params.yaml",
	}
}

// LoadFromPath reads settings from a YAML file over the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadFromPath(path string) (Settings, error) {
	settings := DefaultSettings()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return settings, fmt.Errorf("read settings %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return settings, fmt.Errorf("parse settings %s: %w", path, err)
		}
		log.Debugf("Loaded settings from %s", path)
	}
	ApplyEnvOverrides(&settings)
	return settings, nil
}

// ApplyEnvOverrides applies DAFUNK_* environment variables. Invalid values are
// logged and ignored.
func ApplyEnvOverrides(s *Settings) {
	if v := strings.TrimSpace(os.Getenv("DAFUNK_APPLICATION")); v != "" {
		s.ApplicationName = v
	}
	if v := strings.TrimSpace(os.Getenv("DAFUNK_API_ADDRESS")); v != "" {
		s.APIAddress = v
	}
	envBool("DAFUNK_STATUS_BAR", &s.StatusBarEnabled)
	envBool("DAFUNK_HANDSHAKE_MOCKED", &s.HandshakeMocked)
	envDuration("DAFUNK_RECV_TIMEOUT", &s.RecvTimeout)
	envDuration("DAFUNK_KEEP_ALIVE_INTERVAL", &s.KeepAliveInterval)
	envDuration("DAFUNK_COMMAND_WAIT", &s.CommandWait)
	if v := strings.TrimSpace(os.Getenv("DAFUNK_PARAMS_PATH")); v != "" {
		s.ParamsPath = v
	}
}

func envBool(name string, dst *bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.WithError(err).Warnf("Ignoring %s", name)
		return
	}
	*dst = v
}

func envDuration(name string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.WithError(err).Warnf("Ignoring %s", name)
		return
	}
	*dst = v
}
