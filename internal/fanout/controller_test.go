package fanout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"l10nsched/internal/builddb"
	"l10nsched/internal/locales"
	"l10nsched/internal/properties"
)

// ---- fakes ----

type fakeScheduler struct {
	name     string
	builders []string
}

func (f *fakeScheduler) Name() string           { return f.name }
func (f *fakeScheduler) BuilderNames() []string { return f.builders }

type fakeFetcher struct {
	body    string
	err     error
	calls   int
	lastURL string
}

func (f *fakeFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.calls++
	f.lastURL = url
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

type submission struct {
	ssid     int64
	reason   string
	props    *properties.Set
	builders []string
}

// fakeDB implements InteractionRunner and builddb.Interaction in memory.
type fakeDB struct {
	interactions int
	stamps       map[builddb.SourceStamp]int64
	submissions  []submission
	failAfter    int // fail the Nth CreateBuildSet (1-based); 0 disables
	committed    bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{stamps: map[builddb.SourceStamp]int64{}}
}

func (f *fakeDB) RunInteraction(_ context.Context, fn func(tx builddb.Interaction) error) error {
	f.interactions++
	if err := fn(f); err != nil {
		return err
	}
	f.committed = true
	return nil
}

func (f *fakeDB) SourceStampID(ss builddb.SourceStamp) (int64, error) {
	if id, ok := f.stamps[ss]; ok {
		return id, nil
	}
	id := int64(len(f.stamps) + 1)
	f.stamps[ss] = id
	return id, nil
}

func (f *fakeDB) CreateBuildSet(ssid int64, reason string, props *properties.Set, builders []string) (builddb.EnqueueResult, error) {
	if f.failAfter > 0 && len(f.submissions)+1 >= f.failAfter {
		return builddb.EnqueueResult{}, errors.New("enqueue refused")
	}
	f.submissions = append(f.submissions, submission{ssid: ssid, reason: reason, props: props, builders: builders})
	return builddb.EnqueueResult{BuildSetID: int64(len(f.submissions)), SourceStampID: ssid}, nil
}

func testDeps(db *fakeDB, fetcher Fetcher) Deps {
	return Deps{
		Scheduler: &fakeScheduler{name: "l10n-nightly", builders: []string{"linux-l10n"}},
		Fetcher:   fetcher,
		DB:        db,
	}
}

func explicitList(t *testing.T, text string) *locales.List {
	t.Helper()
	list, err := locales.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return list
}

// ---- construction ----

func TestNewRejectsUnknownPlatform(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Platform: "android", Branch: "b"}, testDeps(newFakeDB(), &fakeFetcher{}))
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "platform" {
		t.Fatalf("expected platform ConfigError, got %v", err)
	}
}

func TestNewRequiresLocaleSource(t *testing.T) {
	t.Parallel()
	// No branch, no explicit list, no URL: nothing to resolve from.
	_, err := New(Config{Platform: "linux"}, testDeps(newFakeDB(), &fakeFetcher{}))
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "branch" {
		t.Fatalf("expected branch ConfigError, got %v", err)
	}
}

func TestNewNormalizesPlatform(t *testing.T) {
	t.Parallel()
	c, err := New(Config{Platform: "macosx64", Branch: "mozilla-central"}, testDeps(newFakeDB(), &fakeFetcher{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Platform() != "osx" {
		t.Fatalf("Platform() = %q, want osx", c.Platform())
	}
}

func TestNewExplicitListNeedsNoBranchOrFetcher(t *testing.T) {
	t.Parallel()
	deps := testDeps(newFakeDB(), nil)
	_, err := New(Config{Platform: "linux", Locales: explicitList(t, "fr\nde")}, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
}

// ---- ResolveLocales ----

func TestResolveLocalesExplicitIsIdempotent(t *testing.T) {
	t.Parallel()
	cfg := Config{Platform: "linux", Locales: explicitList(t, "fr linux\nde")}
	c, err := New(cfg, testDeps(newFakeDB(), nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := c.ResolveLocales(context.Background(), "")
	if err != nil {
		t.Fatalf("ResolveLocales: %v", err)
	}
	// Mutating the returned list must not leak into the configuration.
	first.Add("xx", "win32")

	second, err := c.ResolveLocales(context.Background(), "")
	if err != nil {
		t.Fatalf("ResolveLocales: %v", err)
	}
	if second.Has("xx") {
		t.Fatal("configured locale list was mutated")
	}
	if !second.Equal(explicitList(t, "fr linux\nde")) {
		t.Fatalf("unexpected second resolution: %v", second.Locales())
	}
}

func TestResolveLocalesSubstitutesRevision(t *testing.T) {
	t.Parallel()
	ff := &fakeFetcher{body: "fr\n"}
	c, err := New(Config{Platform: "linux", Branch: "mozilla-central"}, testDeps(newFakeDB(), ff))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.ResolveLocales(context.Background(), "abc123"); err != nil {
		t.Fatalf("ResolveLocales: %v", err)
	}
	want := "https://hg.mozilla.org/mozilla-central/raw-file/abc123/browser/locales/all-locales"
	if ff.lastURL != want {
		t.Fatalf("fetched %q, want %q", ff.lastURL, want)
	}

	// No revision: the base tag fills the placeholder.
	if _, err := c.ResolveLocales(context.Background(), ""); err != nil {
		t.Fatalf("ResolveLocales: %v", err)
	}
	if !strings.Contains(ff.lastURL, "/raw-file/default/") {
		t.Fatalf("fetched %q, want base tag substitution", ff.lastURL)
	}
}

func TestResolveLocalesWrapsFetchFailure(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	c, err := New(Config{Platform: "linux", Branch: "b"}, testDeps(newFakeDB(), &fakeFetcher{err: cause}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ResolveLocales(context.Background(), "")
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, cause) {
		t.Fatalf("expected FetchError wrapping cause, got %v", err)
	}
}

// ---- FanOut ----

func TestFanOutFiltersByPlatformAndBaseLocale(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	cfg := Config{
		Platform: "osx",
		Branch:   "mozilla-central",
		Locales:  explicitList(t, "en-US\nfr\nja linux"),
	}
	c, err := New(cfg, testDeps(db, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := c.FanOut(context.Background(), "", "test reason", nil)
	if err != nil {
		t.Fatalf("FanOut: %v", err)
	}
	if len(results) != 1 || len(db.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(db.submissions))
	}
	got, _ := db.submissions[0].props.Get("locale")
	if got != "fr" {
		t.Fatalf("submitted locale = %v, want fr", got)
	}
	if db.interactions != 1 || !db.committed {
		t.Fatalf("expected one committed interaction, got %d committed=%v", db.interactions, db.committed)
	}
}

func TestFanOutRevisionTagsWinOverExtras(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	cfg := Config{
		Platform: "linux",
		Branch:   "mozilla-central",
		BaseTag:  "FIREFOX_RELEASE_TAG",
		Locales:  explicitList(t, "fr\nde"),
	}
	c, err := New(cfg, testDeps(db, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	extra := properties.New()
	extra.Set("en_revision", "spoofed", "Caller")
	extra.Set("l10n_revision", "spoofed", "Caller")
	extra.Set("nightly", true, "Caller")

	if _, err := c.FanOut(context.Background(), "", "r", extra); err != nil {
		t.Fatalf("FanOut: %v", err)
	}
	for _, sub := range db.submissions {
		loc, _ := sub.props.Get("locale")
		for _, key := range []string{"en_revision", "l10n_revision"} {
			if v, _ := sub.props.Get(key); v != "FIREFOX_RELEASE_TAG" {
				t.Fatalf("locale %v: %s = %v, want base tag", loc, key, v)
			}
			if p, _ := sub.props.Lookup(key); p.Source != "L10nFanOut" {
				t.Fatalf("locale %v: %s source = %q", loc, key, p.Source)
			}
		}
		if v, _ := sub.props.Get("nightly"); v != true {
			t.Fatalf("extra property lost: nightly = %v", v)
		}
		if p, _ := sub.props.Lookup("locale"); p.Source != "Scheduler" {
			t.Fatalf("locale source = %q", p.Source)
		}
	}
}

func TestFanOutFetchFailureEnqueuesNothing(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	c, err := New(Config{Platform: "linux", Branch: "b"}, testDeps(db, &fakeFetcher{err: errors.New("timeout")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.FanOut(context.Background(), "", "r", nil)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if db.interactions != 0 || len(db.submissions) != 0 {
		t.Fatalf("enqueue happened despite fetch failure: %d/%d", db.interactions, len(db.submissions))
	}
}

func TestFanOutFailsFastMidLoop(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	db.failAfter = 2
	cfg := Config{Platform: "linux", Branch: "b", Locales: explicitList(t, "fr\nde\nit")}
	c, err := New(cfg, testDeps(db, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.FanOut(context.Background(), "", "r", nil)
	if err == nil {
		t.Fatal("expected enqueue error")
	}
	if len(db.submissions) != 1 {
		t.Fatalf("submissions after failure = %d, want 1 (fail-fast)", len(db.submissions))
	}
	if db.committed {
		t.Fatal("interaction committed despite failure")
	}
}

func TestFanOutRecordsReasonAndBuilders(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	cfg := Config{Platform: "win32", Branch: "b", Locales: explicitList(t, "fr")}
	c, err := New(cfg, testDeps(db, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.FanOut(context.Background(), "", "en-US nightly done", nil); err != nil {
		t.Fatalf("FanOut: %v", err)
	}
	sub := db.submissions[0]
	if sub.reason != "en-US nightly done" {
		t.Fatalf("reason = %q", sub.reason)
	}
	if len(sub.builders) != 1 || sub.builders[0] != "linux-l10n" {
		t.Fatalf("builders = %v", sub.builders)
	}
}
