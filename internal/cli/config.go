// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for chatstore.
//
// Command: config [subcommand]
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	path                Show the configuration file path
//	init [--force]      Write a config file with the defaults
//	set <key> <value>   Set a value in the config file
//	reset               Replace the config file with the defaults
//
// Keys accepted by set:
//
//	data_dir, server.host, server.port, server.allowed_origins,
//	server.rate_limit_rps, server.rate_limit_burst, server.max_body_bytes,
//	watch.enabled, watch.debounce_millis
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jeranaias/rigrun-chatstore/internal/config"
)

// HandleConfig handles "config [show|path|init|set|reset]". It runs
// without opening the stores.
func (a *App) HandleConfig() error {
	switch a.args.Subcommand {
	case "", "show":
		return a.handleConfigShow()
	case "path":
		return a.handleConfigPath()
	case "init":
		p := NewArgParser(a.args.Raw)
		return a.writeDefaultConfig("init", p.BoolFlag("force", "f"))
	case "reset":
		return a.writeDefaultConfig("reset", true)
	case "set":
		return a.handleConfigSet()
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   a.args.Subcommand,
			Reason:  "unknown config subcommand",
			Example: "chatstore config [show|path|init|set|reset]",
		}
	}
}

// configFilePath is --config when given, else the default location.
func (a *App) configFilePath() (string, error) {
	if a.args.ConfigPath != "" {
		return a.args.ConfigPath, nil
	}
	return config.ConfigPath()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (a *App) handleConfigShow() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	exists := fileExists(a.cfgPath)

	if a.args.JSON {
		return a.printJSON("config show", ConfigData{Path: a.cfgPath, Exists: exists, Config: a.cfg})
	}

	out := a.Stdout
	fmt.Fprintln(out, TitleStyle.Render("chatstore configuration"))
	fmt.Fprintln(out, RenderSeparator(41))
	fmt.Fprint(out, a.cfg.String())
	fmt.Fprintln(out, RenderSeparator(41))
	source := a.cfgPath
	if !exists {
		source += " (not created, using defaults)"
	}
	fmt.Fprintf(out, "Config file: %s\n", DimStyle.Render(source))
	return nil
}

func (a *App) handleConfigPath() error {
	path, err := a.configFilePath()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if a.args.JSON {
		return a.printJSON("config path", ConfigData{Path: path, Exists: fileExists(path)})
	}
	fmt.Fprintln(a.Stdout, path)
	return nil
}

// writeDefaultConfig writes config.Default() to the config file. Without
// overwrite an existing file is an error.
func (a *App) writeDefaultConfig(action string, overwrite bool) error {
	path, err := a.configFilePath()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if fileExists(path) && !overwrite {
		return &ValidationError{
			Field:   "config",
			Value:   path,
			Reason:  "config file already exists",
			Example: "chatstore config init --force",
		}
	}

	if err := config.SaveTOML(config.Default(), path); err != nil {
		return &ConfigError{Err: err}
	}

	if a.args.JSON {
		return a.printJSON("config "+action, ConfigData{Path: path, Exists: true, Config: config.Default()})
	}
	a.printf("%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

// handleConfigSet edits the file itself rather than the effective config,
// so environment overrides never leak into it.
func (a *App) handleConfigSet() error {
	p := NewArgParser(a.args.Raw)
	// Positional(0) is the "set" subcommand.
	key, value := p.Positional(1), p.Positional(2)
	if key == "" || p.PositionalCount() < 3 {
		return ErrMissingArgument("key", "chatstore config set server.port 3001")
	}

	path, err := a.configFilePath()
	if err != nil {
		return &ConfigError{Err: err}
	}
	cfg := config.Default()
	if fileExists(path) {
		if err := config.LoadTOML(cfg, path); err != nil {
			return &ConfigError{Err: err}
		}
	}

	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return &ConfigError{Err: err}
	}

	if a.args.JSON {
		return a.printJSON("config set", ConfigData{Path: path, Exists: true, Config: cfg})
	}
	a.printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

// setConfigValue assigns one dotted key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "data_dir":
		if strings.TrimSpace(value) == "" {
			err = errors.New("must not be empty")
		}
		cfg.DataDir = value
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		cfg.Server.Port, err = strconv.Atoi(value)
	case "server.allowed_origins":
		cfg.Server.AllowedOrigins = splitList(value)
	case "server.rate_limit_rps":
		cfg.Server.RateLimitRPS, err = strconv.ParseFloat(value, 64)
	case "server.rate_limit_burst":
		cfg.Server.RateLimitBurst, err = strconv.Atoi(value)
	case "server.max_body_bytes":
		cfg.Server.MaxBodyBytes, err = strconv.ParseInt(value, 10, 64)
	case "watch.enabled":
		cfg.Watch.Enabled, err = ParseBoolString(value)
	case "watch.debounce_millis":
		cfg.Watch.DebounceMillis, err = strconv.Atoi(value)
	default:
		return &ValidationError{
			Field:   "key",
			Value:   key,
			Reason:  "unknown config key",
			Example: "chatstore config set watch.enabled false",
		}
	}
	if err != nil {
		return ErrInvalidValue(key, value, err)
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
