package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	clientDir := flag.String("client", "", "Path to client directory (default: ../client)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	memory := flag.Bool("memory", false, "Keep blocks in memory instead of SQLite")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *clientDir != "" {
		cfg.ClientDir = *clientDir
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *memory {
		cfg.Memory = true
	}
	if cfg.ClientDir == "" {
		exe, _ := os.Executable()
		cfg.ClientDir = filepath.Join(filepath.Dir(exe), "..", "client")
		// Fallback for development
		if _, err := os.Stat(cfg.ClientDir); os.IsNotExist(err) {
			cfg.ClientDir = "../client"
		}
	}

	var (
		db        *DB
		analytics *Analytics
		stores    StoreFactory
	)
	if cfg.Memory {
		lag := cfg.StoreLag
		stores = func(string) BlockSource { return NewMemoryStore(lag) }
		log.Printf("Blocks kept in memory (visibility lag %d ticks)", lag)
	} else {
		db, err = OpenDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()
		analytics = NewAnalytics(db)
		stores = func(world string) BlockSource { return db.BlockStore(world) }
		log.Printf("Blocks stored in %s", cfg.DBPath)
	}

	sessions := NewSessionManager(cfg, stores, analytics)
	if cfg.SnapshotPath != "" {
		n, err := sessions.Restore(cfg.SnapshotPath)
		if err != nil {
			log.Printf("restore %s: %v", cfg.SnapshotPath, err)
		} else if n > 0 {
			log.Printf("Restored %d sessions from %s", n, cfg.SnapshotPath)
		}
	}

	hub := NewHub(db, analytics, sessions)
	mux := SetupRoutes(hub, cfg.ClientDir, cfg.PublicURL)
	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return sessions.RunReaper(ctx) })
	g.Go(func() error {
		log.Printf("Server starting on %s", cfg.Addr)
		log.Printf("Serving client files from %s", cfg.ClientDir)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	sessions.StopAll()
	if cfg.SnapshotPath != "" {
		if err := sessions.Save(cfg.SnapshotPath); err != nil {
			log.Printf("save %s: %v", cfg.SnapshotPath, err)
		}
	}
	if analytics != nil {
		analytics.Stop()
	}
}
