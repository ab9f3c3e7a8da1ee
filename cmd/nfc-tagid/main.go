package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SimplyPrint/nfc-tagid/internal/api"
	"github.com/SimplyPrint/nfc-tagid/internal/config"
	"github.com/SimplyPrint/nfc-tagid/internal/core"
	"github.com/SimplyPrint/nfc-tagid/internal/discovery"
	"github.com/SimplyPrint/nfc-tagid/internal/logging"
	"github.com/SimplyPrint/nfc-tagid/internal/service"
	"github.com/SimplyPrint/nfc-tagid/internal/settings"
	"github.com/SimplyPrint/nfc-tagid/internal/tray"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	noTrayFlag := flag.Bool("no-tray", false, "Run without system tray (headless mode)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "NFC Tag ID - Local NFC tag UID service\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  nfc-tagid [flags]\n")
		fmt.Fprintf(os.Stderr, "  nfc-tagid <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  install     Start nfc-tagid at login\n")
		fmt.Fprintf(os.Stderr, "  uninstall   Stop starting nfc-tagid at login\n")
		fmt.Fprintf(os.Stderr, "  status      Show auto-start status\n")
		fmt.Fprintf(os.Stderr, "  version     Print version information\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_PORT         Port to listen on (default: 32146)\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_HOST         Host to bind to (default: 127.0.0.1)\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_MDNS         Advertise over mDNS (default: false)\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_LOG_LEVEL    Minimum log level (default: debug)\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_SETTINGS     Path to settings.json\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_CRASH_DIR    Directory for crash logs\n")
		fmt.Fprintf(os.Stderr, "  NFC_TAGID_SENTRY_DSN   Sentry DSN for crash reporting\n")
	}

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	if args := flag.Args(); len(args) > 0 {
		runCommand(args[0])
		return
	}

	run(config.Load(), *noTrayFlag)
}

func runCommand(name string) {
	svc := service.New()
	switch name {
	case "version":
		printVersion()
	case "install":
		if err := svc.Install(); err != nil {
			log.Fatalf("Failed to install auto-start: %v", err)
		}
		fmt.Println("Auto-start installed successfully")
	case "uninstall":
		if err := svc.Uninstall(); err != nil {
			log.Fatalf("Failed to remove auto-start: %v", err)
		}
		fmt.Println("Auto-start removed successfully")
	case "status":
		status, err := svc.Status()
		if err != nil {
			log.Fatalf("Failed to query auto-start: %v", err)
		}
		fmt.Println(status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		flag.Usage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("nfc-tagid %s\n", api.Version)
	fmt.Printf("Build time: %s\n", api.BuildTime)
	fmt.Printf("Git commit: %s\n", api.GitCommit)
}

func run(cfg *config.Config, headless bool) {
	level, ok := logging.ParseLevel(cfg.LogLevel)
	logging.Init(1000, level)
	if !ok {
		logging.Warn(logging.CatSystem, "Unknown log level, using info", map[string]any{
			"level": cfg.LogLevel,
		})
	}

	if cfg.SettingsPath != "" {
		settings.SetPath(cfg.SettingsPath)
	}
	if _, err := settings.Load(); err != nil {
		logging.Warn(logging.CatSystem, "Failed to load settings, using defaults", map[string]any{
			"error": err.Error(),
		})
	}

	if logging.InitSentry(api.Version, settings.IsCrashReportingEnabled()) {
		logging.Info(logging.CatSystem, "Crash reporting enabled", nil)
	}
	defer logging.FlushSentry(2 * time.Second)

	logging.Info(logging.CatSystem, "NFC Tag ID starting", map[string]any{
		"version": api.Version,
	})

	readers := core.NewReaderService(nil)
	api.SetBackend(readers, readers)

	mux := api.NewMux()
	mux.HandleFunc("/v1/ws", api.InitWebSocket())

	addr := cfg.Address()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var advertiser *discovery.Advertiser
	if cfg.MDNS {
		a, err := discovery.Start(cfg.Port, api.Version)
		if err != nil {
			logging.Warn(logging.CatDiscovery, "mDNS advertisement unavailable", map[string]any{
				"error": err.Error(),
			})
		}
		advertiser = a
	}

	var once sync.Once
	done := make(chan struct{})
	shutdown := func() {
		once.Do(func() {
			defer close(done)
			log.Println("Shutting down...")
			advertiser.Shutdown()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logging.Warn(logging.CatSystem, "Server shutdown incomplete", map[string]any{
					"error": err.Error(),
				})
			}
		})
	}

	serve := func() {
		log.Printf("nfc-tagid %s listening on http://%s\n", api.Version, addr)
		log.Printf("WebSocket available at ws://%s/v1/ws\n", addr)
		logging.Info(logging.CatSystem, "Server started", map[string]any{
			"address": addr,
		})

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.FlushSentry(2 * time.Second)
			log.Fatalf("server error: %v", err)
		}
	}

	trayApp := tray.New(addr, readers, shutdown)
	api.SetTagListener(trayApp.SetLastTag)

	if !headless && tray.IsSupported() {
		log.Println("Starting with system tray...")
		api.SetShutdownHandler(trayApp.Quit)
		go func() {
			<-signals()
			trayApp.Quit()
		}()

		// systray needs the main thread on macOS
		trayApp.RunWithServer(serve)
		<-done
		return
	}

	if headless {
		log.Println("Running in headless mode (no system tray)")
	} else {
		log.Println("System tray not supported on this platform, running headless")
	}
	api.SetShutdownHandler(shutdown)

	go func() {
		<-signals()
		shutdown()
	}()

	serve()
	<-done
}

func signals() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}
