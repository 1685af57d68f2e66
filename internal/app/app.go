package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"penpal/internal/alert"
	"penpal/internal/config"
	"penpal/internal/eventbus"
	"penpal/internal/generator"
	"penpal/internal/mailer"
	"penpal/internal/pipeline"
	"penpal/internal/runtime/supervisor"
	"penpal/internal/scheduler"
	"penpal/internal/storage"
	logx "penpal/pkg/logx"
)

// App wires configuration, logging, storage, the alert pipeline and the
// scheduler into one process.
type App struct {
	cfgPath string
	env     config.Env

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	alertTransport alert.Transport
	alerts         *alert.Service
	sink           *alert.Sink
	sched          *scheduler.Service
}

// NewApp loads configuration and constructs every component. cfgPath may
// be empty; the app then runs from the environment alone and hot reload
// is unavailable.
func NewApp(cfgPath string) (*App, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	var (
		cfgm *config.Manager
		cfg  *config.Config
	)
	if strings.TrimSpace(cfgPath) != "" {
		cfgm = config.NewManager(cfgPath)
		cfg, err = cfgm.Load()
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.FromEnv(env)
		if err != nil {
			return nil, err
		}
	}
	// Env fills gaps the file left (secrets, accounts). Load commits the
	// same pointer, so the filled config is also what Get() returns.
	cfg.FillFromEnv(env)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional; backs alert dedup across restarts)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage open", logx.String("driver", sc.Driver))
	}

	// Alert pipeline. The transport is built whenever a token is present,
	// even if alerting starts disabled, so a reload can enable it without
	// a restart. Token/chat changes themselves need a restart.
	acfg, err := mapAlertConfig(cfg)
	if err != nil {
		return nil, err
	}
	var transport alert.Transport
	if cfg.Alert != nil && strings.TrimSpace(cfg.Alert.Token) != "" {
		tg, err := alert.NewTelegram(alert.TelegramConfig{
			Token:    cfg.Alert.Token,
			ChatID:   cfg.Alert.ChatID,
			ThreadID: cfg.Alert.ThreadID,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("alert transport: %w", err)
		}
		transport = tg
	}
	alerts := alert.New(acfg, transport, log.With(logx.String("comp", "alert")), bus, store)
	sink := alert.NewSink(alerts, log)

	// Dispatch pipeline: generator + email transport.
	genTimeout, err := config.DurationOr("ai.timeout", cfg.AI.Timeout, 0)
	if err != nil {
		return nil, err
	}
	gen := generator.New(generator.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: genTimeout,
	}, log)
	sender, err := buildSender(cfg, log)
	if err != nil {
		return nil, err
	}
	pipe := pipeline.New(gen, sender, log)

	// Accounts + scheduler. Validate guarantees at least one resolves.
	accounts, issues := config.ResolveAccounts(cfg)
	for _, is := range issues {
		log.Warn("account excluded", logx.String("account", is.Account), logx.String("reason", is.Reason))
	}
	dispatchTimeout, err := config.DurationOr("scheduler.dispatch_timeout", cfg.Scheduler.DispatchTimeout, 0)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(scheduler.Config{
		Timezone:        cfg.Timezone,
		DispatchTimeout: dispatchTimeout,
	}, accounts, scheduler.SystemClock(), pipe, sink, log, bus)

	return &App{
		cfgPath:        cfgPath,
		env:            env,
		cfgm:           cfgm,
		log:            log,
		logs:           logSvc,
		bus:            bus,
		store:          store,
		alertTransport: transport,
		alerts:         alerts,
		sink:           sink,
		sched:          sched,
	}, nil
}

// Done is closed once the run context ends, by Stop or by a fatal error.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err reports the fatal error that ended the run, if there was one.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: fill from env + validate before commit/publish
	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		env := a.env
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			cfg.FillFromEnv(env)
			return config.Validate(cfg)
		})
	}

	if a.alerts.Enabled() {
		a.alerts.Start(a.sup.Context())
	}
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	// Mirror bus traffic into the debug log.
	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					// Keep this debug-level: scheduler fires are frequent.
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	// config reload loop
	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			// Diff against the config that actually took effect, not
			// whatever was committed last.
			lastApplied := a.cfgm.Get()
			for {
				select {
				case <-c.Done():
					return
				case newCfg, ok := <-sub:
					if !ok {
						return
					}
					// Drain queued updates; only the newest one is applied.
					for {
						select {
						case newer := <-sub:
							if newer != nil {
								newCfg = newer
							}
						default:
							goto APPLY
						}
					}
				APPLY:
					sections, attrs, accountsChanged := config.SummarizeConfigChange(lastApplied, newCfg)
					if len(sections) > 0 {
						fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
						a.log.Debug("config diff", fields...)
					} else {
						a.log.Debug("config reload carried no effective changes")
					}
					prevCfg := lastApplied
					lastApplied = newCfg

					for _, s := range sections {
						if s == "storage" {
							a.log.Warn("storage changes need a restart to take effect")
							break
						}
					}
					if backendChanged(prevCfg, newCfg) {
						a.log.Warn("ai/email backend changes need a restart to take effect")
					}

					// logging follows the new config immediately
					a.logs.Apply(logx.Config{
						Level:   newCfg.Logging.Level,
						Console: newCfg.Logging.Console,
						File: logx.FileConfig{
							Enabled: newCfg.Logging.File.Enabled,
							Path:    newCfg.Logging.File.Path,
						},
					})

					// apply alert updates (live)
					acfg, err := mapAlertConfig(newCfg)
					if err != nil {
						a.log.Warn("invalid alert config; keeping previous", logx.Any("err", err))
					} else {
						if transportChanged(prevCfg, newCfg) {
							a.log.Warn("alert token/chat changes need a restart to take effect")
						}
						prevEnabled := a.alerts.Enabled()
						a.alerts.Apply(acfg)
						if prevEnabled && !acfg.Enabled {
							a.log.Info("alerts disabled via config")
							stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
							a.alerts.Stop(stopCtx)
							cancel()
						} else if !prevEnabled && acfg.Enabled {
							if a.alertTransport == nil {
								a.log.Warn("alerts enabled but no transport was configured at startup; restart required")
							} else {
								a.log.Info("alerts enabled via config")
								a.alerts.Start(c)
							}
						}
					}

					// apply schedule updates (live): streams restart in place.
					// Prompt and sender-identity defaults land in resolved
					// accounts, so ai/email changes re-resolve too.
					needSched := accountsChanged
					for _, s := range sections {
						switch s {
						case "timezone", "scheduler", "ai", "email":
							needSched = true
						}
					}
					if needSched {
						accounts, issues := config.ResolveAccounts(newCfg)
						for _, is := range issues {
							a.log.Warn("account excluded", logx.String("account", is.Account), logx.String("reason", is.Reason))
						}
						dt, err := config.DurationOr("scheduler.dispatch_timeout", newCfg.Scheduler.DispatchTimeout, 0)
						if err != nil {
							a.log.Warn("invalid scheduler config; keeping previous", logx.Any("err", err))
						} else if err := a.sched.Apply(scheduler.Config{
							Timezone:        newCfg.Timezone,
							DispatchTimeout: dt,
						}, accounts); err != nil {
							a.log.Warn("scheduler apply failed; keeping previous", logx.Any("err", err))
						}
					}

					if a.bus != nil {
						a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})
					}

					// One summary line at info; per-section detail went out at debug.
					if len(sections) > 0 {
						fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
						a.log.Info("config applied", fields...)
					} else {
						a.log.Info("config applied (no changes)")
					}
				}
			}
		})

		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Per-stream totals for the process life.
	for _, st := range a.sched.Snapshot().Streams {
		a.log.Info("stream summary",
			logx.String("account", st.Account),
			logx.Uint64("fires", st.Fires),
			logx.Uint64("failures", st.Failures),
			logx.Bool("excluded", st.Excluded),
		)
	}

	// Cancel the run context up front; every loop starts unwinding while
	// the ordered steps below wait for them.
	a.sup.Cancel()

	// step bounds one shutdown phase so a stuck component cannot hold up
	// the rest of the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop phase begin", logx.String("name", name), logx.Dur("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// the caller's deadline wins when it is sooner
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("stop phase %s panicked: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop phase error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop phase end", logx.String("name", name), logx.Dur("took", took))
			} else {
				a.log.Debug("stop phase end", logx.String("name", name), logx.Dur("took", took))
			}
		case <-stepCtx.Done():
			// fn is expected to honor stepCtx. A step that overruns is
			// abandoned here and logged when it finally returns.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop phase deadline reached, moving on",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Dur("elapsed", elapsed),
			)
			// Watch the straggler so its eventual exit still shows up.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop phase finished late", logx.String("name", name), logx.String("err", err.Error()), logx.Dur("took", took))
				} else {
					a.log.Info("stop phase finished late", logx.String("name", name), logx.Dur("took", took))
				}
			}()
		}
	}

	// Scheduler first so no new dispatches enter the pipeline. Its budget
	// covers one in-flight generate+send.
	schedMax := a.sched.Snapshot().DispatchTimeout + 10*time.Second
	step("scheduler", schedMax, func(c context.Context) error { a.sched.Stop(c); return nil })

	// Alerts after the scheduler so failure/success reports from the last
	// dispatches drain too. Storage stays open until the drain is done.
	step("alerts", 5*time.Second, func(c context.Context) error { a.alerts.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, event log).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func buildSender(cfg *config.Config, log logx.Logger) (mailer.Sender, error) {
	timeout, err := config.DurationOr("email.timeout", cfg.Email.Timeout, 0)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Email.Provider)) {
	case "", "resend":
		return mailer.NewResendSender(cfg.Email.APIKey, timeout, log), nil
	case "log":
		return mailer.NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("email.provider: unknown provider %q", cfg.Email.Provider)
	}
}

func mapAlertConfig(cfg *config.Config) (alert.Config, error) {
	if cfg == nil || cfg.Alert == nil {
		return alert.Config{}, nil
	}
	ac := cfg.Alert

	retryBase, err := config.DurationOr("alert.retry_base", ac.RetryBase, 0)
	if err != nil {
		return alert.Config{}, err
	}
	retryMaxDelay, err := config.DurationOr("alert.retry_max_delay", ac.RetryMaxDelay, 0)
	if err != nil {
		return alert.Config{}, err
	}
	dedupWindow, err := config.DurationOr("alert.dedup_window", ac.DedupWindow, 0)
	if err != nil {
		return alert.Config{}, err
	}

	// Success notifications default to on; an explicit false turns them off.
	notifySuccess := true
	if ac.NotifySuccess != nil {
		notifySuccess = *ac.NotifySuccess
	}
	return alert.Config{
		Enabled:         ac.Enabled,
		NotifySuccess:   notifySuccess,
		Workers:         ac.Workers,
		QueueSize:       ac.QueueSize,
		RatePerSec:      ac.RatePerSec,
		RetryMax:        ac.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: ac.DedupMaxEntries,
		PersistDedup:    ac.PersistDedup,
	}, nil
}

// transportChanged reports whether the Telegram transport identity
// (token, chat, thread) differs. The transport is fixed at boot.
func transportChanged(oldCfg, newCfg *config.Config) bool {
	var oldTok, oldChat string
	var oldThread int
	if oldCfg != nil && oldCfg.Alert != nil {
		oldTok = strings.TrimSpace(oldCfg.Alert.Token)
		oldChat = strings.TrimSpace(oldCfg.Alert.ChatID)
		oldThread = oldCfg.Alert.ThreadID
	}
	var newTok, newChat string
	var newThread int
	if newCfg != nil && newCfg.Alert != nil {
		newTok = strings.TrimSpace(newCfg.Alert.Token)
		newChat = strings.TrimSpace(newCfg.Alert.ChatID)
		newThread = newCfg.Alert.ThreadID
	}
	return oldTok != newTok || oldChat != newChat || oldThread != newThread
}

// backendChanged reports whether generator/email transport fields that
// are fixed at boot differ. Prompt and sender-identity defaults are not
// backend fields; those flow into resolved accounts.
func backendChanged(oldCfg, newCfg *config.Config) bool {
	if oldCfg == nil || newCfg == nil {
		return oldCfg != newCfg
	}
	if strings.TrimSpace(oldCfg.AI.APIKey) != strings.TrimSpace(newCfg.AI.APIKey) ||
		strings.TrimSpace(oldCfg.AI.BaseURL) != strings.TrimSpace(newCfg.AI.BaseURL) ||
		strings.TrimSpace(oldCfg.AI.Model) != strings.TrimSpace(newCfg.AI.Model) ||
		strings.TrimSpace(oldCfg.AI.Timeout) != strings.TrimSpace(newCfg.AI.Timeout) {
		return true
	}
	if strings.TrimSpace(oldCfg.Email.Provider) != strings.TrimSpace(newCfg.Email.Provider) ||
		strings.TrimSpace(oldCfg.Email.APIKey) != strings.TrimSpace(newCfg.Email.APIKey) ||
		strings.TrimSpace(oldCfg.Email.Timeout) != strings.TrimSpace(newCfg.Email.Timeout) {
		return true
	}
	return false
}
