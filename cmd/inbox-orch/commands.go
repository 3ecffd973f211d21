package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/inbox-orchestrator/internal/agentapi"
	"github.com/hochfrequenz/inbox-orchestrator/internal/config"
	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/history"
	"github.com/hochfrequenz/inbox-orchestrator/internal/instructions"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runstore"
	"github.com/hochfrequenz/inbox-orchestrator/internal/updater"
	"github.com/hochfrequenz/inbox-orchestrator/tui"
)

var (
	historyLimit   int
	historyOutcome string
	daemonAddr     string
	servePort      int
	versionCheck   bool
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one delegation pass and print the result",
		RunE:  runOnce,
	}
	rootCmd.AddCommand(runCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard daemon",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the terminal dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)

	// history command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List archived delegation runs",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().StringVar(&historyOutcome, "outcome", "", "filter by outcome")
	rootCmd.AddCommand(historyCmd)

	// retry command
	retryCmd := &cobra.Command{
		Use:   "retry INDEX",
		Short: "Resend a failed teammate notification via the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE:  runRetry,
	}
	retryCmd.Flags().StringVar(&daemonAddr, "addr", "", "daemon address (host:port)")
	rootCmd.AddCommand(retryCmd)

	// sample command
	sampleCmd := &cobra.Command{
		Use:   "sample on|off",
		Short: "Toggle sample data on the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE:  runSample,
	}
	sampleCmd.Flags().StringVar(&daemonAddr, "addr", "", "daemon address (host:port)")
	rootCmd.AddCommand(sampleCmd)

	// version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE:  runVersion,
	}
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")
	rootCmd.AddCommand(versionCmd)

	// update command
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update inbox-orch to the latest release",
		RunE:  runUpdate,
	}
	rootCmd.AddCommand(updateCmd)
}

func loadConfig() (*config.Config, string, error) {
	return config.LoadWithLocalFallback(configPath)
}

func buildController(cfg *config.Config) (*runner.Controller, error) {
	if cfg.Agent.BaseURL == "" {
		return nil, fmt.Errorf("agent base_url is not configured; set it under [agent] in the config file")
	}
	client := agentapi.NewClient(cfg.Agent.BaseURL, cfg.Agent.APIKey)
	ctrl := runner.New(client, instructions.DefaultLibrary(), history.NewLedger(), runner.Options{
		AgentID:        cfg.Agent.AgentID,
		InvokeTimeout:  cfg.Agent.Timeout(),
		PhaseInterval:  cfg.Run.PhaseInterval(),
		CompleteLinger: cfg.Run.CompleteLinger(),
	})
	return ctrl, nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctrl, err := buildController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	done := make(chan domain.RunRecord, 1)
	ctrl.OnRunComplete(func(rec domain.RunRecord) { done <- rec })

	fmt.Printf("Invoking %s...\n", cfg.Agent.AgentID)
	if !ctrl.StartRun(context.Background()) {
		return fmt.Errorf("a delegation run is already active")
	}

	rec := <-done

	if cfg.Archive.Enabled {
		archiveRun(cfg, rec)
	}

	printRunRecord(rec)

	if rec.Failed() {
		os.Exit(1)
	}
	return nil
}

func archiveRun(cfg *config.Config, rec domain.RunRecord) {
	store, err := runstore.New(cfg.Archive.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: opening run archive failed: %v\n", err)
		return
	}
	defer store.Close()
	if err := store.SaveRun(&rec); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: archiving run failed: %v\n", err)
	}
}

func printRunRecord(rec domain.RunRecord) {
	if rec.Failed() {
		fmt.Printf("Run failed: %s\n", rec.ErrorMsg)
		return
	}

	if rec.Summary != "" {
		fmt.Println(rec.Summary)
	}
	if rec.Stats != nil {
		fmt.Printf("Scanned %d emails, %d matched, %d tasks extracted, %d notified, %d failed (%d%% delivered)\n",
			rec.Stats.Scanned, rec.Stats.Matched, rec.Stats.TasksExtracted,
			rec.Stats.NotificationsSent, rec.Stats.NotificationsFailed, rec.Stats.SuccessRate())
	}

	if len(rec.Items) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tASSIGNEE\tPRIORITY\tCHANNEL\tNOTIFICATION")
	for _, item := range rec.Items {
		priority := string(item.Priority)
		if priority == "" {
			priority = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.Title, item.Assignee, priority, item.Channel, item.NotificationStatus)
	}
	w.Flush()
}

func runTUI(cmd *cobra.Command, args []string) error {
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

	p := tea.NewProgram(tui.NewModel(ctrl), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	// Persist a sample-data toggle flipped inside the dashboard
	if m, ok := finalModel.(tui.Model); ok && m.SampleEnabled() != cfg.Display.SampleData {
		cfg.Display.SampleData = m.SampleEnabled()
		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Saved sample_data = %v to config\n", cfg.Display.SampleData)
	}

	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if !cfg.Archive.Enabled {
		return fmt.Errorf("run archive is disabled; enable it under [archive] in the config file")
	}

	store, err := runstore.New(cfg.Archive.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(runstore.ListOptions{Outcome: historyOutcome, Limit: historyLimit})
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No archived runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tOUTCOME\tDELIVERED\tSUMMARY")
	for _, r := range runs {
		delivered := "-"
		if r.Stats != nil {
			delivered = fmt.Sprintf("%d/%d", r.Stats.NotificationsSent, r.Stats.TasksExtracted)
		}
		summary := r.Summary
		if summary == "" {
			summary = r.ErrorMsg
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.Time(r.FinishedAt), r.Outcome, delivered, summary)
	}
	w.Flush()

	return nil
}

// postDaemon sends one JSON command to the running serve daemon
func postDaemon(cfg *config.Config, path string, payload interface{}) error {
	addr := daemonAddr
	if addr == "" {
		addr = cfg.Web.Addr()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s%s", addr, path), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s (is 'inbox-orch serve' running?): %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("daemon rejected the request: %s", e.Error)
		}
		return fmt.Errorf("daemon rejected the request: status %d", resp.StatusCode)
	}

	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("index must be a number, got %q", args[0])
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if err := postDaemon(cfg, "/api/retry", map[string]int{"index": index}); err != nil {
		return err
	}

	fmt.Printf("Resending notification for item %d\n", index)
	return nil
}

func runSample(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if err := postDaemon(cfg, "/api/sample", map[string]bool{"enabled": enabled}); err != nil {
		return err
	}

	fmt.Printf("Sample data %s\n", args[0])
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("inbox-orch %s\n", version)

	if !versionCheck {
		return nil
	}

	latest, err := updater.CheckLatestVersion()
	if err != nil {
		return fmt.Errorf("checking latest release: %w", err)
	}

	if updater.NeedsUpdate(version, latest) {
		fmt.Printf("Update available: %s (run 'inbox-orch update')\n", latest)
	} else {
		fmt.Println("You are on the latest release")
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	latest, err := updater.CheckLatestVersion()
	if err != nil {
		return fmt.Errorf("checking latest release: %w", err)
	}

	if !updater.NeedsUpdate(version, latest) {
		fmt.Println("Already on the latest release")
		return nil
	}

	fmt.Printf("Updating %s -> %s...\n", version, latest)
	if err := updater.SelfUpdate(latest); err != nil {
		return err
	}

	fmt.Println("Update complete. Restart any running daemon to pick it up.")
	return nil
}
