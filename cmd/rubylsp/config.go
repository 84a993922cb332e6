package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sorahex/rubylsp/pkg/indexer"
	"github.com/sorahex/rubylsp/pkg/rlslog"
)

// ProjectConfig holds the contents of .rubylsp/config.yaml. Every field except
// Exclude can also be supplied as a command-line flag; flags win when both are
// present.
type ProjectConfig struct {
	StubRoot        string   `yaml:"stub_root"`
	DependencyRoot  string   `yaml:"dependency_root"`
	LanguageVersion string   `yaml:"language_version"`
	Workers         int      `yaml:"workers"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	CallLogPath     string   `yaml:"call_log_path"`
	Exclude         []string `yaml:"exclude"`
}

// loadProjectConfig reads .rubylsp/config.yaml from the current directory.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig() (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(".rubylsp", "config.yaml"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// serveFlags collects the subset of settings "serve" and "index" accept on
// the command line, each overriding the matching .rubylsp/config.yaml field
// when non-zero.
type serveFlags struct {
	projectRoot     string
	stubRoot        string
	dependencyRoot  string
	languageVersion string
	workers         int
	logLevel        string
	logFormat       string
	callLogPath     string
	watch           bool
}

func parseServeFlags(args []string) serveFlags {
	f := serveFlags{projectRoot: "."}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--project-root":
			i++
			if i < len(args) {
				f.projectRoot = args[i]
			}
		case "--stub-dir":
			i++
			if i < len(args) {
				f.stubRoot = args[i]
			}
		case "--dependency-dir":
			i++
			if i < len(args) {
				f.dependencyRoot = args[i]
			}
		case "--language-version":
			i++
			if i < len(args) {
				f.languageVersion = args[i]
			}
		case "--workers":
			i++
			if i < len(args) {
				fmt.Sscanf(args[i], "%d", &f.workers)
			}
		case "--log-level":
			i++
			if i < len(args) {
				f.logLevel = args[i]
			}
		case "--log-format":
			i++
			if i < len(args) {
				f.logFormat = args[i]
			}
		case "--call-log":
			i++
			if i < len(args) {
				f.callLogPath = args[i]
			}
		case "--watch":
			f.watch = true
		}
	}
	return f
}

// resolveIndexerConfig merges .rubylsp/config.yaml with flag overrides into
// an indexer.Config rooted at f.projectRoot.
func resolveIndexerConfig(f serveFlags) indexer.Config {
	cfg, _ := loadProjectConfig() // a missing or unreadable file just means no overrides

	ic := indexer.Config{ProjectRoot: f.projectRoot}
	if cfg != nil {
		ic.StubRoot = cfg.StubRoot
		ic.DependencyRoot = cfg.DependencyRoot
		ic.LanguageVersion = cfg.LanguageVersion
		ic.Workers = cfg.Workers
		ic.Exclude = cfg.Exclude
	}
	if f.stubRoot != "" {
		ic.StubRoot = f.stubRoot
	}
	if f.dependencyRoot != "" {
		ic.DependencyRoot = f.dependencyRoot
	}
	if f.languageVersion != "" {
		ic.LanguageVersion = f.languageVersion
	}
	if f.workers != 0 {
		ic.Workers = f.workers
	}
	return ic
}

// resolveLogConfig merges .rubylsp/config.yaml with flag overrides into an
// rlslog.Config. Logs always go to stderr: stdout carries the MCP transport
// when serving.
func resolveLogConfig(f serveFlags) rlslog.Config {
	cfg, _ := loadProjectConfig()

	lc := rlslog.DefaultConfig()
	if cfg != nil {
		if cfg.LogLevel != "" {
			lc.Level = rlslog.Level(cfg.LogLevel)
		}
		if cfg.LogFormat != "" {
			lc.Format = rlslog.Format(cfg.LogFormat)
		}
	}
	if f.logLevel != "" {
		lc.Level = rlslog.Level(f.logLevel)
	}
	if f.logFormat != "" {
		lc.Format = rlslog.Format(f.logFormat)
	}
	return lc
}

// resolveCallLogPath applies the same config-then-flag fallback chain to the
// mcplog JSONL path. An empty result disables call logging.
func resolveCallLogPath(f serveFlags) string {
	if f.callLogPath != "" {
		return f.callLogPath
	}
	if cfg, err := loadProjectConfig(); err == nil && cfg != nil {
		return cfg.CallLogPath
	}
	return ""
}
