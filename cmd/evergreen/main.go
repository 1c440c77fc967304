package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/ayusman/evergreen/internal/app"
	"github.com/ayusman/evergreen/internal/choreo"
	"github.com/ayusman/evergreen/internal/config"
	"github.com/ayusman/evergreen/internal/placement"
	"github.com/ayusman/evergreen/internal/server"
	"github.com/ayusman/evergreen/internal/store"
	"github.com/ayusman/evergreen/internal/tray"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "evergreen",
		Short:         "Evergreen - particle Christmas tree driven by hand gestures",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to a TOML config file")

	root.AddCommand(newServeCmd(), newLayoutCmd(), newConfigCmd())
	return root
}

type serveFlags struct {
	addr       string
	db         string
	web        string
	noTracking bool
	tray       bool
	watch      bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scene, hand tracker and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(path, f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&f.db, "db", "", "database path, or :memory: (default ~/.evergreen/evergreen.db)")
	cmd.Flags().StringVar(&f.web, "web", "", "directory with the renderer (default: search web/)")
	cmd.Flags().BoolVar(&f.noTracking, "no-tracking", false, "disable the camera and hand tracking")
	cmd.Flags().BoolVar(&f.tray, "tray", false, "show a system tray menu")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "reload the groups when the config file changes")
	return cmd
}

func serve(configPath string, f serveFlags) error {
	fmt.Println("Evergreen - Particle Tree")

	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.addr != "" {
		settings.Server.Addr = f.addr
	}
	if f.noTracking {
		settings.Tracking.Enabled = false
	}
	if f.tray {
		settings.Tray.Enabled = true
	}

	dbPath := f.db
	if dbPath == "" {
		dbPath = settings.Store.Path
	}
	if dbPath == "" {
		if dbPath, err = defaultDBPath(); err != nil {
			return err
		}
	}
	if dbPath, err = homedir.Expand(dbPath); err != nil {
		return fmt.Errorf("database path: %w", err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	a, err := app.New(app.Config{Settings: settings, Store: st})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		return err
	}

	webDir := f.web
	if webDir == "" {
		webDir = findWebDir()
	} else if webDir, err = homedir.Expand(webDir); err != nil {
		return fmt.Errorf("web directory: %w", err)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	httpSrv := &http.Server{
		Addr:    settings.Server.Addr,
		Handler: server.New(server.Config{StaticDir: webDir, App: a}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if f.watch && configPath != "" {
		go watchConfig(ctx, configPath, a)
	}

	if settings.Tray.Enabled {
		// The tray owns the main goroutine until it quits.
		runTray(ctx, stop, a, settings.Server.Addr)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// watchConfig applies group changes from the config file to the running
// scene. Other settings need a restart.
func watchConfig(ctx context.Context, path string, a *app.App) {
	err := config.Watch(ctx, path, func(c config.Config) {
		if _, err := a.Reconfigure(c.Groups); err != nil {
			log.Printf("Failed to apply reloaded groups: %v", err)
		}
	})
	if err != nil {
		log.Printf("Config watch stopped: %v", err)
	}
}

// runTray shows the tray menu and refreshes its status line until the tray
// quits or ctx is done.
func runTray(ctx context.Context, quit context.CancelFunc, a *app.App, addr string) {
	tr := tray.New(a.GestureEnabled())
	tr.OnMixToggle(func() {
		if err := a.Enqueue(choreo.Event{Type: choreo.EventToggle}); err != nil {
			log.Printf("Failed to toggle: %v", err)
		}
	})
	tr.OnGestureToggle(a.SetGestureEnabled)
	tr.OnOpen(func() { openBrowser(browserURL(addr)) })
	tr.OnQuit(quit)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				tr.Quit()
				return
			case <-ticker.C:
				tr.SetStatus(a.Status())
			}
		}
	}()

	tr.Run()
	quit()
}

func newLayoutCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the generated particles of a group as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			settings, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return writeLayout(cmd.OutOrStdout(), settings, group)
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "group id (default: every group)")
	return cmd
}

type layoutOutput struct {
	Group     placement.GroupConfig `json:"group"`
	Particles []placement.Particle  `json:"particles"`
}

func writeLayout(w io.Writer, settings config.Config, group string) error {
	scene, err := choreo.New(settings.ChoreoOptions())
	if err != nil {
		return err
	}

	var out []layoutOutput
	for _, g := range scene.Groups() {
		if group != "" && g.ID != group {
			continue
		}
		l := scene.Layout(g.ID)
		out = append(out, layoutOutput{Group: l.Config, Particles: l.Particles})
	}
	if len(out) == 0 {
		return fmt.Errorf("unknown group %q", group)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			settings, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, err := config.Encode(settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func defaultDBPath() (string, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dbDir := filepath.Join(homeDir, ".evergreen")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dbDir, "evergreen.db"), nil
}

// findWebDir searches for the renderer in "web", "../web", "../../web" and
// ~/.evergreen/web. Returns the first existing directory or empty string.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := homedir.Dir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".evergreen", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func browserURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
