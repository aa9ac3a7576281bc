package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "l10nsched/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "America/Los_Angeles"

	// NightlyTimeout bounds one nightly fan-out run (fetch + enqueue).
	// Zero applies a sane default.
	NightlyTimeout time.Duration
}

const defaultNightlyTimeout = 10 * time.Minute

// NightlyReason returns the reason recorded on buildsets created by the
// nightly firing of the named scheduler.
func NightlyReason(name string) string {
	return fmt.Sprintf("The Nightly scheduler named %q triggered this build", name)
}

// Service keeps the scheduler registry and drives nightly cron firings.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	reg       map[string]*Triggerable
	nightlies map[string]*nightlyDef

	// Fan-out error throttling: key is scheduler name.
	warnMu   sync.Mutex
	lastWarn map[string]time.Time
}

type nightlyDef struct {
	name    string
	spec    string
	t       *Triggerable
	entryID cron.EntryID
}

func NewService(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.NightlyTimeout <= 0 {
		cfg.NightlyTimeout = defaultNightlyTimeout
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		reg:       map[string]*Triggerable{},
		nightlies: map[string]*nightlyDef{},
		lastWarn:  map[string]time.Time{},
	}
}

// Register adds a triggerable scheduler. Upsert by name, so re-applying
// config after a reload never duplicates schedulers.
func (s *Service) Register(t *Triggerable) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeNightlyLocked(t.Name())
	s.reg[t.Name()] = t
	s.log.Debug("scheduler registered", logx.String("name", t.Name()))
}

// Get returns the scheduler registered under name.
func (s *Service) Get(name string) (*Triggerable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.reg[name]
	return t, ok
}

// Names returns the registered scheduler names (unordered).
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.reg))
	for name := range s.reg {
		out = append(out, name)
	}
	return out
}

// AddNightly registers t and schedules a nightly firing per spec
// (standard cron syntax or descriptors like "@daily").
func (s *Service) AddNightly(spec string, t *Triggerable) error {
	if t == nil {
		return errors.New("trigger: nil scheduler")
	}
	if strings.TrimSpace(spec) == "" {
		return errors.New("trigger: nightly spec required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("trigger: invalid nightly spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeNightlyLocked(t.Name())
	s.reg[t.Name()] = t
	d := &nightlyDef{name: t.Name(), spec: spec, t: t}
	s.nightlies[t.Name()] = d
	if s.c != nil {
		if err := s.addCronLocked(d); err != nil {
			return err
		}
	}
	s.log.Debug("nightly registered", logx.String("name", t.Name()), logx.String("spec", spec))
	return nil
}

// Remove unregisters the named scheduler (and its nightly, if any).
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reg[name]
	if ok {
		delete(s.reg, name)
	}
	s.removeNightlyLocked(name)
	if ok {
		s.log.Debug("scheduler removed", logx.String("name", name))
	}
	return ok
}

func (s *Service) removeNightlyLocked(name string) {
	d, ok := s.nightlies[name]
	if !ok {
		return
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.nightlies, name)
}

func (s *Service) addCronLocked(d *nightlyDef) error {
	job := cron.FuncJob(func() { s.runNightly(d.t) })
	eid, err := s.c.AddJob(d.spec, job)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

// runNightly executes one nightly fan-out. Each firing is its own task;
// concurrent firings of different schedulers share nothing but the db.
func (s *Service) runNightly(t *Triggerable) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NightlyTimeout)
	defer cancel()

	results, err := t.ctrl.FanOut(ctx, "", NightlyReason(t.Name()), nil)
	if err != nil {
		s.reportFanOutError(t.Name(), err)
		return
	}
	s.log.Info("nightly fan-out complete",
		logx.String("name", t.Name()),
		logx.Int("submitted", len(results)))
}

// Start begins cron triggering for registered nightlies.
func (s *Service) Start(ctx context.Context) {
	_ = ctx // reserved for context-driven stop policies

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return
	}

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	for _, d := range s.nightlies {
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("nightly register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("trigger service started",
		logx.String("tz", loc.String()),
		logx.Int("schedulers", len(s.reg)),
		logx.Int("nightlies", len(s.nightlies)))
}

// Stop halts cron triggering. Registered definitions remain so Start can
// resume them.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	for _, d := range s.nightlies {
		d.entryID = 0
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("trigger service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

const fanOutWarnThrottle = 5 * time.Second

// reportFanOutError logs a failed firing, throttled per scheduler so a
// flapping webhost doesn't flood the log.
func (s *Service) reportFanOutError(name string, err error) {
	if err == nil {
		return
	}
	now := time.Now()
	s.warnMu.Lock()
	last := s.lastWarn[name]
	if !last.IsZero() && now.Sub(last) < fanOutWarnThrottle {
		s.warnMu.Unlock()
		return
	}
	s.lastWarn[name] = now
	s.warnMu.Unlock()

	s.log.Warn("nightly fan-out failed", logx.String("name", name), logx.Err(err))
}
