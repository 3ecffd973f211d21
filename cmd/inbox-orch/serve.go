package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/inbox-orchestrator/internal/config"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/notify"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runstore"
	"github.com/hochfrequenz/inbox-orchestrator/internal/schedule"
	"github.com/hochfrequenz/inbox-orchestrator/web/api"
)

func buildNotifier(cfg *config.Config) notify.Notifier {
	var parts []notify.Notifier
	if cfg.Notifications.Desktop {
		parts = append(parts, notify.NewDesktopNotifier(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		parts = append(parts, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(parts) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(parts...)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	ctrl, err := buildController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if cfg.Display.SampleData {
		ctrl.SetSampleData(true)
	}

	var archive *runstore.Store
	if cfg.Archive.Enabled {
		archive, err = runstore.New(cfg.Archive.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening run archive: %w", err)
		}
		defer archive.Close()
	}

	// The notifier is swapped on config reload, so completion hooks read it
	// under a lock.
	var notifierMu sync.Mutex
	notifier := buildNotifier(cfg)

	addr := cfg.Web.Addr()
	if servePort != 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Web.Host, servePort)
	}
	srv := api.NewServer(ctrl, archive, addr)

	ctrl.OnChange(func(snap runner.Snapshot) {
		srv.BroadcastState(snap)
	})
	ctrl.OnRunComplete(func(rec domain.RunRecord) {
		srv.BroadcastRunComplete(rec)

		if archive != nil {
			if err := archive.SaveRun(&rec); err != nil {
				log.Printf("archiving run %s failed: %v", rec.ID, err)
			}
		}

		notifierMu.Lock()
		n := notifier
		notifierMu.Unlock()
		if err := n.Send(notify.ForRunRecord(rec)); err != nil {
			log.Printf("notification delivery failed: %v", err)
		}
	})

	var sched *schedule.Scheduler
	if cfg.Schedule.Enabled {
		sched, err = schedule.New(cfg.Schedule.Cron)
		if err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}

	watcher, err := config.NewWatcher(cfgPath, func(newCfg *config.Config) {
		notifierMu.Lock()
		notifier = buildNotifier(newCfg)
		notifierMu.Unlock()

		if sched != nil && newCfg.Schedule.Cron != "" {
			if err := sched.UpdateCron(newCfg.Schedule.Cron); err != nil {
				log.Printf("config reload: %v", err)
			}
		}
		log.Printf("config reloaded from %s", cfgPath)
	})
	if err != nil {
		// A missing config directory just means nothing to watch
		log.Printf("config watching disabled: %v", err)
		watcher = nil
	}

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		fmt.Printf("Inbox Orchestrator dashboard at http://%s\n", addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sched != nil {
		fmt.Printf("Scheduled runs enabled (%s), next %s\n",
			cfg.Schedule.Cron, humanize.Time(sched.NextRun()))
		g.Go(func() error {
			sched.Start(func() bool {
				return ctrl.StartRun(context.Background())
			})
			return nil
		})
	}

	if watcher != nil {
		watcher.Start(ctx)
	}

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case <-ctx.Done():
		}

		if sched != nil {
			sched.Stop()
		}
		if watcher != nil {
			watcher.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
