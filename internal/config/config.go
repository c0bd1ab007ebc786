// Package config loads the settings this bridge needs from environment
// variables, an optional config file, and well-known fallback paths, using
// the viper + xdg combination the CLI examples in this pack use for the
// same job (the teacher repo has no config layer of its own to generalize).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config is the resolved, immutable set of settings used across the
// session engine, router, and admin surfaces.
type Config struct {
	ADBPath             string
	ServerVersion       string
	ServerJarSearchPath []string
	SQLitePath          string
	AdminHTTPAddr       string
	EventsWSAddr        string
	WatchdogInterval    time.Duration
	DefaultMaxSize      int
	DefaultMaxFPS       int
	DefaultVideoBitRate int
}

// Load resolves Config from environment variables (ADB_PATH,
// SCRCPY_SERVER_PATH, SCRCPY_SERVER_VERSION), an optional
// $SCRCPY_MCP_HOME/config.yaml / ./config.yaml, and XDG-based defaults for
// anything left unset.
func Load() *Config {
	v := viper.New()

	v.SetDefault("adb.path", "adb")
	v.SetDefault("server.version", "3.3.4")
	v.SetDefault("storage.sqlite_path", filepath.Join(home(), "audit.db"))
	v.SetDefault("admin.http_addr", "127.0.0.1:28091")
	v.SetDefault("admin.events_addr", "127.0.0.1:28092")
	v.SetDefault("watchdog.interval", "30s")
	v.SetDefault("scrcpy.max_size", 1080)
	v.SetDefault("scrcpy.max_fps", 30)
	v.SetDefault("scrcpy.video_bit_rate", 8_000_000)

	v.AutomaticEnv()
	_ = v.BindEnv("adb.path", "ADB_PATH")
	_ = v.BindEnv("server.jar_path", "SCRCPY_SERVER_PATH")
	_ = v.BindEnv("server.version", "SCRCPY_SERVER_VERSION")
	_ = v.BindEnv("home", "SCRCPY_MCP_HOME")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home())
	v.AddConfigPath("/etc/scrcpy-mcp")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A config file exists but is malformed: fall back to defaults
			// rather than aborting a device-automation daemon over YAML.
		}
	}

	watchdogInterval, err := time.ParseDuration(v.GetString("watchdog.interval"))
	if err != nil || watchdogInterval <= 0 {
		watchdogInterval = 30 * time.Second
	}

	return &Config{
		ADBPath:             v.GetString("adb.path"),
		ServerVersion:       v.GetString("server.version"),
		ServerJarSearchPath: jarSearchPaths(v.GetString("server.jar_path")),
		SQLitePath:          v.GetString("storage.sqlite_path"),
		AdminHTTPAddr:       v.GetString("admin.http_addr"),
		EventsWSAddr:        v.GetString("admin.events_addr"),
		WatchdogInterval:    watchdogInterval,
		DefaultMaxSize:      v.GetInt("scrcpy.max_size"),
		DefaultMaxFPS:       v.GetInt("scrcpy.max_fps"),
		DefaultVideoBitRate: v.GetInt("scrcpy.video_bit_rate"),
	}
}

// jarSearchPaths returns the ordered list of paths to probe for
// scrcpy-server.jar: an explicit override first, then well-known locations
// (XDG data/config dirs and the working directory), generalized beyond a
// single hardcoded path.
func jarSearchPaths(explicit string) []string {
	paths := []string{}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	paths = append(paths,
		filepath.Join(home(), "scrcpy-server.jar"),
		filepath.Join(xdg.DataHome, "scrcpy-mcp", "scrcpy-server.jar"),
		filepath.Join(xdg.ConfigHome, "scrcpy-mcp", "scrcpy-server.jar"),
		"./assets/scrcpy-server.jar",
		"/usr/share/scrcpy/scrcpy-server.jar",
		"/usr/local/share/scrcpy/scrcpy-server.jar",
	)
	return paths
}

func home() string {
	if h := os.Getenv("SCRCPY_MCP_HOME"); h != "" {
		return h
	}
	return filepath.Join(xdg.Home, ".scrcpy-mcp")
}
