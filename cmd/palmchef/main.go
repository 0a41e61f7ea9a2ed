package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/palmchef/internal/app"
	"github.com/ayusman/palmchef/internal/config"
	"github.com/ayusman/palmchef/internal/notify"
	"github.com/ayusman/palmchef/internal/plugin"
	"github.com/ayusman/palmchef/internal/server"
	"github.com/ayusman/palmchef/internal/session"
	"github.com/ayusman/palmchef/internal/store"
	"github.com/ayusman/palmchef/internal/tray"
)

func main() {
	fmt.Println("PalmChef - Hands-free Recipe Control")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	bindings := plugin.DefaultBindings()
	if cfg.BindingsFile != "" {
		bindings, err = plugin.LoadBindings(cfg.BindingsFile)
		if err != nil {
			log.Fatalf("Failed to load bindings: %v", err)
		}
	}

	plugins := plugin.NewManager(cfg.PluginDir)
	if err := plugins.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	fmt.Printf("Loaded %d plugins from %s\n", len(plugins.List()), cfg.PluginDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := plugin.NewDispatcher(plugins, plugin.NewExecutor(plugin.DefaultTimeout), bindings)
	go dispatcher.Run(ctx)

	observers := []session.Observer{dispatcher}
	if cfg.Notify {
		observers = append(observers, notify.New(true))
	}

	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	registry := session.NewRegistry()
	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Registry:   registry,
		NewSession: cfg.Session,
		Observers:  observers,
		Steps:      cfg.Steps,
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv}
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server failed: %v", err)
			stop()
		}
	}()

	var t *tray.Tray
	if cfg.Tray {
		t = tray.New(dashboardURL(cfg.Addr))
	}

	var local *app.App
	if cfg.CameraEnabled() {
		localObservers := append([]session.Observer{srv.Hub()}, observers...)
		if t != nil {
			localObservers = append(localObservers, t)
		}
		local, err = app.New(app.Config{
			CameraID:     cfg.CameraID,
			MotionThresh: cfg.MotionThreshold,
			Session:      cfg.Session(session.SourceCamera),
			Steps:        cfg.Steps,
			Observers:    localObservers,
			Store:        st,
			Registry:     registry,
		})
		if err != nil {
			log.Fatalf("Failed to create local pipeline: %v", err)
		}
		if err := local.Start(); err != nil {
			log.Fatalf("Failed to start camera %d: %v", cfg.CameraID, err)
		}
		local.SetEnabled(true)
	}

	if t != nil {
		t.OnToggle(func(enabled bool) {
			if local != nil {
				local.SetEnabled(enabled)
			}
		})
		t.OnOpen(func() { openBrowser(dashboardURL(cfg.Addr)) })
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
	} else {
		<-ctx.Done()
	}

	fmt.Println("Shutting down")
	if local != nil {
		local.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	stats := dispatcher.Stats()
	fmt.Printf("Actions: %d executed, %d failed, %d dropped\n", stats.Executed, stats.Failed, stats.Dropped)
}

func dashboardURL(addr string) string {
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
		log.Printf("Failed to open %s: %v", url, err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
