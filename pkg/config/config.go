package config

import (
	"github.com/ruscc/ruscc/pkg/cli"
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnUnusedVariable
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Warnings       map[Warning]Info
	WarningMap     map[string]Warning
	InputName      string
	WordSize       int
	StackAlignment int
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:       make(map[Warning]Info),
		WarningMap:     make(map[string]Warning),
		WordSize:       8,
		StackAlignment: 16,
	}

	warnings := map[Warning]Info{
		WarnOverflow:       {"overflow", true, "Warn when an integer constant is out of range for its type."},
		WarnUnusedVariable: {"unused-variable", true, "Warn about local variables that are never read."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetupFlagGroups registers -W<warning>/-Wno-<warning> toggles on fs. The
// returned entries are read back with ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) []cli.FlagGroupEntry {
	entries := make([]cli.FlagGroupEntry, 0, len(c.Warnings))
	for wt := Warning(0); wt < WarnCount; wt++ {
		info := c.Warnings[wt]
		enabled := info.Enabled
		disabled := false
		entries = append(entries, cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  &enabled,
			Disabled: &disabled,
		})
	}
	fs.AddFlagGroup("Warnings", "warning", entries)
	return entries
}

func (c *Config) ApplyFlagGroups(entries []cli.FlagGroupEntry) {
	for _, e := range entries {
		wt, ok := c.WarningMap[e.Name]
		if !ok {
			continue
		}
		enabled := e.Enabled != nil && *e.Enabled
		if e.Disabled != nil && *e.Disabled {
			enabled = false
		}
		c.SetWarning(wt, enabled)
	}
}
