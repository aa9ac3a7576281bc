package config

import (
	"fmt"
	"sort"
	"strings"

	"l10nsched/internal/locales"
)

// Config is the root configuration document (YAML or JSON, strict keys).
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Fetch   FetchConfig   `json:"fetch,omitempty"`
	Trigger TriggerConfig `json:"trigger"`

	// Schedulers defines the fan-out schedulers to register.
	Schedulers []SchedulerConfig `json:"schedulers"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"` // trace|debug|info|warn|error
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig locates the build database.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// FetchConfig controls the locale list fetch client.
//
// Timeout is a Go duration string (e.g. "300s", "5m").
type FetchConfig struct {
	Timeout     string  `json:"timeout,omitempty"`
	RatePerHost float64 `json:"rate_per_host,omitempty"`
}

type TriggerConfig struct {
	Enabled        bool   `json:"enabled"`
	Timezone       string `json:"timezone,omitempty"`
	NightlyTimeout string `json:"nightly_timeout,omitempty"` // Go duration string
}

// SchedulerConfig defines one fan-out scheduler.
//
// The locale source is, in priority order: the explicit "locales" mapping,
// the "locales_url" template, or a URL derived from repo+branch+locales_file.
type SchedulerConfig struct {
	Name     string   `json:"name"`
	Builders []string `json:"builders"`

	Platform    string `json:"platform"`
	Branch      string `json:"branch,omitempty"`
	BaseTag     string `json:"base_tag,omitempty"`
	Repo        string `json:"repo,omitempty"`
	LocalesFile string `json:"locales_file,omitempty"`
	LocalesURL  string `json:"locales_url,omitempty"`

	// Locales is an explicit locale -> platform-restrictions mapping,
	// e.g. {"fr": [], "ja": ["linux", "win32"]}.
	Locales map[string][]string `json:"locales,omitempty"`

	// Nightly is an optional cron spec; when set, the scheduler also
	// fires on that schedule (in the trigger service's timezone).
	Nightly string `json:"nightly,omitempty"`

	// Properties are persistent build properties merged into every
	// submission from this scheduler.
	Properties map[string]any `json:"properties,omitempty"`
}

// LocaleList converts the explicit locale mapping into a parser List
// (nil when no explicit mapping is configured). Keys are inserted sorted
// so repeated loads produce identical lists.
func (sc SchedulerConfig) LocaleList() *locales.List {
	if sc.Locales == nil {
		return nil
	}
	ids := make([]string, 0, len(sc.Locales))
	for id := range sc.Locales {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list := locales.NewList()
	for _, id := range ids {
		list.Add(id, sc.Locales[id]...)
	}
	return list
}

// Validate checks cross-field constraints that strict decoding cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path: required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("fetch.timeout", c.Fetch.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("trigger.nightly_timeout", c.Trigger.NightlyTimeout); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i, sc := range c.Schedulers {
		path := fmt.Sprintf("schedulers[%d]", i)
		if strings.TrimSpace(sc.Name) == "" {
			return fmt.Errorf("%s.name: required", path)
		}
		if seen[sc.Name] {
			return fmt.Errorf("%s.name: duplicate scheduler %q", path, sc.Name)
		}
		seen[sc.Name] = true
		if len(sc.Builders) == 0 {
			return fmt.Errorf("%s.builders: at least one builder required", path)
		}
		if !locales.SupportedPlatform(sc.Platform) {
			return fmt.Errorf("%s.platform: unsupported platform %q (recognized: %s)",
				path, sc.Platform, strings.Join(locales.SupportedPlatforms(), ", "))
		}
		if sc.Locales == nil && sc.LocalesURL == "" && strings.TrimSpace(sc.Branch) == "" {
			return fmt.Errorf("%s: branch is required when neither locales nor locales_url is set", path)
		}
	}
	return nil
}
