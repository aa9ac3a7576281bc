// Package fanout turns one "the en-US build finished" event into one
// enqueued localized build per supported locale.
//
// The Controller resolves a locale list (explicit config or remote
// fetch), filters it by the target platform, and creates one buildset per
// surviving locale inside a single build database interaction. It holds a
// handle to the scheduler it serves (Capability) instead of deriving from
// it.
package fanout

import (
	"context"
	"strconv"
	"strings"
	"time"

	"l10nsched/internal/builddb"
	"l10nsched/internal/eventbus"
	"l10nsched/internal/locales"
	"l10nsched/internal/properties"
	logx "l10nsched/pkg/logx"
)

const (
	// BaseLocale is the reference locale. It appears in locale list files
	// but is never independently repackaged.
	BaseLocale = "en-US"

	// revisionPlaceholder is the token substituted into the locales URL
	// template. The %(...)s shape is kept for compatibility with existing
	// scheduler configs.
	revisionPlaceholder = "%(revision)s"

	DefaultRepo        = "https://hg.mozilla.org/"
	DefaultBaseTag     = "default"
	DefaultLocalesFile = "browser/locales/all-locales"

	// DefaultFetchTimeout bounds the locale list download.
	DefaultFetchTimeout = 300 * time.Second
)

// Provenance tags recorded on submitted build properties.
const (
	sourceScheduler = "Scheduler"
	sourceFanOut    = "L10nFanOut"
)

// Capability is the slice of the host scheduler the controller needs:
// a stable name and the builders its buildsets feed.
type Capability interface {
	Name() string
	BuilderNames() []string
}

// Fetcher downloads a URL within a bounded time.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// InteractionRunner is the build database handle: every enqueue happens
// inside one of its interaction scopes.
type InteractionRunner interface {
	RunInteraction(ctx context.Context, fn func(tx builddb.Interaction) error) error
}

// Config is the construction-time surface of a fan-out controller.
//
// Exactly one locale source must be usable: either Locales (explicit
// list), or LocalesURL (template with a %(revision)s placeholder), or
// Repo+Branch+LocalesFile from which the URL template is derived.
type Config struct {
	// Platform is required and must be one of the recognized platform
	// names. Variants like "macosx64" are normalized for filtering.
	Platform string

	Branch  string
	BaseTag string // revision tag recorded on every submission; default "default"

	Repo        string // default DefaultRepo
	LocalesFile string // default DefaultLocalesFile

	// Locales, when set, is the explicit locale source; no fetch happens.
	Locales *locales.List

	// LocalesURL, when set, overrides the derived URL template.
	LocalesURL string

	// FetchTimeout bounds one locale list download; default 300s.
	FetchTimeout time.Duration
}

// Deps are the collaborators handed in at construction. The build
// database and scheduler capability are passed explicitly rather than
// reached through an ambient parent.
type Deps struct {
	Scheduler Capability
	Fetcher   Fetcher
	DB        InteractionRunner
	Log       logx.Logger
	Bus       eventbus.Bus // optional

	// BaseProperties are the controller's persistent properties, merged
	// into every submission before caller-supplied extras.
	BaseProperties *properties.Set
}

type Controller struct {
	cfg  Config
	deps Deps

	platform   string // normalized form used for filtering
	localesURL string // resolved template; empty when Locales is explicit
	log        logx.Logger
}

// New validates cfg and builds a Controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	if !locales.SupportedPlatform(cfg.Platform) {
		return nil, &ConfigError{Field: "platform", Reason: "unsupported platform " + strconv.Quote(cfg.Platform)}
	}
	if deps.Scheduler == nil {
		return nil, &ConfigError{Field: "scheduler", Reason: "capability is required"}
	}
	if deps.DB == nil {
		return nil, &ConfigError{Field: "db", Reason: "build database is required"}
	}

	if cfg.BaseTag == "" {
		cfg.BaseTag = DefaultBaseTag
	}
	if cfg.Repo == "" {
		cfg.Repo = DefaultRepo
	}
	if cfg.LocalesFile == "" {
		cfg.LocalesFile = DefaultLocalesFile
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	c := &Controller{
		cfg:      cfg,
		deps:     deps,
		platform: locales.NormalizePlatform(cfg.Platform),
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	c.log = log.With(logx.String("scheduler", deps.Scheduler.Name()))

	switch {
	case cfg.Locales != nil:
		// Explicit list; no URL needed.
	case cfg.LocalesURL != "":
		c.localesURL = cfg.LocalesURL
	case cfg.Branch == "":
		return nil, &ConfigError{
			Field:  "branch",
			Reason: "required to derive the locales URL when neither an explicit locale list nor a locales URL is configured",
		}
	default:
		c.localesURL = cfg.Repo + cfg.Branch + "/raw-file/" + revisionPlaceholder + "/" + cfg.LocalesFile
	}

	if cfg.Locales == nil && deps.Fetcher == nil {
		return nil, &ConfigError{Field: "fetcher", Reason: "required when locales come from a URL"}
	}

	return c, nil
}

// Platform returns the normalized platform used for filtering.
func (c *Controller) Platform() string { return c.platform }

// ResolveLocales returns the locale list for one triggering event.
//
// With an explicit list configured this is synchronous and idempotent (a
// copy is returned, so callers cannot mutate the configuration). Otherwise
// revision (or the base tag, when revision is empty) is substituted into
// the URL template and the file is fetched and parsed. No caching across
// events, no retry.
func (c *Controller) ResolveLocales(ctx context.Context, revision string) (*locales.List, error) {
	if c.cfg.Locales != nil {
		return c.cfg.Locales.Clone(), nil
	}

	if revision == "" {
		revision = c.cfg.BaseTag
	}
	url := strings.ReplaceAll(c.localesURL, revisionPlaceholder, revision)
	c.log.Debug("fetching locale list", logx.String("url", url))

	fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	body, err := c.deps.Fetcher.Get(fctx, url)
	if err != nil {
		ferr := &FetchError{URL: url, Err: err}
		c.log.Error("locale list fetch failed", logx.String("url", url), logx.Err(err))
		return nil, ferr
	}
	list, err := locales.Parse(string(body))
	if err != nil {
		c.log.Error("locale list parse failed", logx.String("url", url), logx.Err(err))
		return nil, err
	}
	return list, nil
}

// FanOut resolves the locale list and enqueues one localized build per
// surviving locale, all inside one build database interaction.
//
// Filtering: the base locale is always skipped; a locale with a non-empty
// restriction set is skipped unless the set contains the controller's
// normalized platform.
//
// Properties per submission: base properties, then extra, then forced
// locale / en_revision / l10n_revision (later writes win).
//
// The loop is sequential and fail-fast: the first enqueue error aborts
// the remaining locales and rolls back the interaction. That rollback is
// a build database guarantee, not something this controller implements;
// callers integrating other sinks must not assume all-or-nothing
// semantics.
func (c *Controller) FanOut(ctx context.Context, revision, reason string, extra *properties.Set) ([]builddb.EnqueueResult, error) {
	list, err := c.ResolveLocales(ctx, revision)
	if err != nil {
		return nil, err
	}
	c.log.Debug("locale list resolved", logx.Int("locales", list.Len()))

	builders := c.deps.Scheduler.BuilderNames()
	var results []builddb.EnqueueResult

	err = c.deps.DB.RunInteraction(ctx, func(tx builddb.Interaction) error {
		for _, locale := range list.Locales() {
			if locale == BaseLocale {
				continue
			}
			if rs := list.Restrictions(locale); rs.Len() > 0 && !rs.Has(c.platform) {
				c.log.Debug("locale skipped for platform",
					logx.String("locale", locale),
					logx.String("platform", c.platform))
				continue
			}

			props := properties.New()
			props.MergeFrom(c.deps.BaseProperties)
			props.MergeFrom(extra)
			props.Set("locale", locale, sourceScheduler)
			props.Set("en_revision", c.cfg.BaseTag, sourceFanOut)
			props.Set("l10n_revision", c.cfg.BaseTag, sourceFanOut)

			ssid, err := tx.SourceStampID(builddb.SourceStamp{Branch: c.cfg.Branch})
			if err != nil {
				c.log.Error("sourcestamp failed", logx.String("locale", locale), logx.Err(err))
				return err
			}
			res, err := tx.CreateBuildSet(ssid, reason, props, builders)
			if err != nil {
				c.log.Error("enqueue failed", logx.String("locale", locale), logx.Err(err))
				return err
			}
			c.log.Info("locale submitted",
				logx.String("locale", locale),
				logx.Int64("buildset", res.BuildSetID))
			results = append(results, res)

			if c.deps.Bus != nil {
				c.deps.Bus.Publish(eventbus.Event{
					Type: eventbus.TypeBuildSetCreated,
					Data: map[string]any{"locale": locale, "buildset": res.BuildSetID},
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.deps.Bus != nil {
		c.deps.Bus.Publish(eventbus.Event{
			Type: eventbus.TypeFanOutDone,
			Data: map[string]any{"scheduler": c.deps.Scheduler.Name(), "submitted": len(results)},
		})
	}
	return results, nil
}
