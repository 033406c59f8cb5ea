package main

import (
	"context"
	"fmt"

	"fast3r/internal/assistant"
	"fast3r/internal/config"
	"fast3r/internal/logging"
	"fast3r/internal/media"
	"fast3r/internal/perception"
	"fast3r/internal/provider"
	"fast3r/internal/reconstruction"
	"fast3r/internal/routing"
	"fast3r/internal/store"
	"fast3r/internal/types"
	"fast3r/internal/usage"
)

// app is the wired process: config, journal, usage accounting, and (when a
// command talks to the provider) the gateway.
type app struct {
	cfg     *config.Config
	store   *store.LocalStore // nil when persistence is disabled
	tracker *usage.Tracker
	gateway *provider.Gateway
	media   *media.Store
}

// newApp wires the process. withProvider requires a valid API key.
func newApp(ctx context.Context, c *config.Config, withProvider bool) (*app, error) {
	a := &app{cfg: c}

	tracker, err := usage.NewTracker(c.Store.UsagePath)
	if err != nil {
		return nil, err
	}
	a.tracker = tracker

	if c.Store.DatabasePath != "" {
		s, err := store.NewLocalStore(c.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.store = s
	}

	if !withProvider {
		return a, nil
	}
	if err := c.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	pcfg := provider.DefaultConfig(c.Provider.APIKey)
	pcfg.Timeout = c.GetProviderTimeout()
	if timeout > 0 {
		pcfg.Timeout = timeout
	}
	backend, err := provider.NewGenAIBackend(ctx, pcfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	poller := media.NewPoller(media.PollerConfig{
		Interval: c.GetPollInterval(),
		Timeout:  c.GetPollTimeout(),
		Fetcher:  media.NewHTTPFetcher(pcfg.APIKey, nil),
		Observer: func(ev media.Event) {
			logging.MediaDebug("operation %s %s attempt=%d elapsed=%s", ev.Operation, ev.State, ev.Attempt, ev.Elapsed)
		},
	})
	a.media = poller.Store()
	a.gateway = provider.NewGateway(backend, provider.GatewayConfig{
		Provider:          pcfg,
		Policy:            routing.NewPolicy(c.Models, c.Assistant.ThinkingBudget),
		LiveInfo:          perception.NewKeywordDetector(c.Assistant.LiveInfoTriggers),
		Poller:            poller,
		Usage:             tracker,
		SystemInstruction: c.Assistant.SystemInstruction,
		VideoResolution:   c.Video.Resolution,
	})
	logging.Boot("provider gateway ready: timeout=%s poll=%s/%s", pcfg.Timeout, c.GetPollInterval(), c.GetPollTimeout())
	return a, nil
}

// newSession starts a session, resuming the latest journaled one on request.
func (a *app) newSession(resume bool) (*assistant.Session, error) {
	opts := assistant.Options{
		Greeting:    a.cfg.Assistant.Greeting,
		ImageSize:   types.ImageSize(a.cfg.Assistant.ImageSize),
		AspectRatio: types.AspectRatio(a.cfg.Assistant.AspectRatio),
		Recorder:    a.recorder(),
	}
	if a.store != nil {
		opts.Sink = a.store
		if resume {
			id, err := a.store.LatestSession()
			if err != nil {
				return nil, err
			}
			if id != "" {
				history, err := a.store.LoadMessages(id)
				if err != nil {
					return nil, err
				}
				opts.ID, opts.History = id, history
			}
		}
	}
	return assistant.NewSession(a.gateway, opts)
}

func (a *app) recorder() *assistant.Recorder {
	if len(a.cfg.Assistant.RecordCommand) == 0 {
		return assistant.NewRecorder(nil)
	}
	mime := a.cfg.Assistant.RecordMIMEType
	if mime == "" {
		mime = "audio/wav"
	}
	return assistant.NewRecorder(assistant.NewCommandSource(a.cfg.Assistant.RecordCommand, mime))
}

// jobManager builds a reconstruction manager journaled to the store and
// seeded from it.
func (a *app) jobManager() (*reconstruction.Manager, error) {
	var opts []reconstruction.ManagerOption
	opts = append(opts, reconstruction.WithListener(func(job types.ReconstructionJob) {
		logging.Jobs("job %s (%s) is %s", job.ID, job.Name, job.Status)
	}))
	if a.store == nil {
		return reconstruction.NewManager(opts...), nil
	}
	opts = append(opts, reconstruction.WithJournal(a.store))
	m := reconstruction.NewManager(opts...)
	jobs, err := a.store.LoadJobs()
	if err != nil {
		return nil, err
	}
	if err := m.Restore(jobs); err != nil {
		return nil, err
	}
	return m, nil
}

// jobScheduler builds the journaled manager and a scheduler that has resumed
// the jobs earlier runs left processing. Callers Stop the scheduler.
func (a *app) jobScheduler() (*reconstruction.Manager, *reconstruction.Scheduler, error) {
	manager, err := a.jobManager()
	if err != nil {
		return nil, nil, err
	}
	sched := reconstruction.NewScheduler(manager, a.cfg.GetCompletionDelay())
	if n := sched.Resume(); n > 0 {
		logging.Jobs("%d job(s) from earlier runs completed on resume", n)
	}
	return manager, sched, nil
}

// Close flushes usage and closes the journal.
func (a *app) Close() {
	if a.tracker != nil {
		if err := a.tracker.Flush(); err != nil {
			logging.Get(logging.CategoryUsage).Warn("failed to flush usage: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.StoreWarn("failed to close journal: %v", err)
		}
	}
}
