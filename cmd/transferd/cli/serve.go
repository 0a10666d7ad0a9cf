package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/cleanup"
	"github.com/transferd/transferd/pkg/fileapi"
	"github.com/transferd/transferd/pkg/handler"
	"github.com/transferd/transferd/pkg/kv/kvopen"
	"github.com/transferd/transferd/pkg/lock"
	"github.com/transferd/transferd/pkg/quota"
	"github.com/transferd/transferd/pkg/records"
)

// Serve wires every package under pkg/ into a running server and blocks
// until an interrupt signal is handled: build the state backend and
// handlers, mount metrics/pprof, listen, wait for a clean shutdown.
func Serve() {
	logger := NewLogger()

	backend, err := kvopen.Open(Flags.BackendAddr)
	if err != nil {
		stderr.Fatalf("Unable to open state backend: %s", err)
	}
	stdout.Printf("Using %q as the state backend.\n", Flags.BackendAddr)

	if err := os.MkdirAll(Flags.StoragePath, 0755); err != nil {
		stderr.Fatalf("Unable to ensure storage directory exists: %s", err)
	}

	store := records.New(backend)
	locker := lock.New(backend, lock.DefaultTimeout)

	blobs, err := blobstore.New(Flags.StoragePath, locker)
	if err != nil {
		stderr.Fatalf("Unable to set up blob storage: %s", err)
	}

	var maxStorage *int64
	if Flags.MaxStorageSize > 0 {
		maxStorage = &Flags.MaxStorageSize
	}
	accountant := quota.New(blobs.UploadsDir(), blobs.FilesDir(), maxStorage)

	tusHandler, err := handler.NewHandler(handler.Config{
		BasePath:                         Flags.Basepath,
		Records:                          store,
		Blobs:                            blobs,
		Locker:                           locker,
		Quota:                            accountant,
		MaxUploadSize:                    Flags.MaxUploadSize,
		UploadExpiration:                 time.Duration(Flags.UploadExpirationSeconds) * time.Second,
		DefaultRetention:                 handler.RetentionPolicy(Flags.DefaultRetention),
		DefaultRetentionTTL:              time.Duration(Flags.DefaultRetentionTTL) * time.Second,
		TokenRetentionPolicies:           tokenRetentionPolicies(),
		NetworkTimeout:                   Flags.NetworkTimeout,
		GracefulRequestCompletionTimeout: Flags.GracefulRequestCompletionTimeout,
		AcquireLockTimeout:               Flags.AcquireLockTimeout,
		Logger:                           logger,
	})
	if err != nil {
		stderr.Fatalf("Unable to create TUS handler: %s", err)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := tusHandler.ReconcileOrphans(startupCtx); err != nil {
		stdout.Printf("Orphan reconciliation failed: %s\n", err)
	} else if n > 0 {
		stdout.Printf("Reconciled %d orphaned upload(s) from a prior crash.\n", n)
	}
	startupCancel()

	scheduler := cleanup.New(cleanup.Config{
		Records:  store,
		Blobs:    blobs,
		Locker:   locker,
		Interval: Flags.CleanupInterval,
		Logger:   logger,
	})

	api, err := fileapi.New(fileapi.Config{
		Records:   store,
		Blobs:     blobs,
		Quota:     accountant,
		Cleanup:   scheduler,
		ChunkSize: Flags.ChunkSize,
		Logger:    logger,
	})
	if err != nil {
		stderr.Fatalf("Unable to create file API: %s", err)
	}

	mux := http.NewServeMux()
	if Flags.Basepath != "/" {
		PrepareGreeting()
		mux.HandleFunc("/", DisplayGreeting)
	}
	mux.Handle(Flags.Basepath, tusHandler.Mux())
	mux.Handle("/api/", api.Mux())

	if Flags.ExposeMetrics {
		SetupMetrics(mux, tusHandler, accountant)
	}
	if Flags.ExposePprof {
		SetupPprof(mux)
	}

	address := Flags.HttpHost + ":" + Flags.HttpPort
	stdout.Printf("Using %s as address to listen.\n", address)
	stdout.Printf("Using %s as the TUS base path.\n", Flags.Basepath)
	stdout.Printf("Supported TUS extensions: %s\n", handler.SupportedExtensions)

	listener, err := NewListener(address, Flags.NetworkTimeout, Flags.NetworkTimeout)
	if err != nil {
		stderr.Fatalf("Unable to create listener: %s", err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadTimeout:       0,
		ReadHeaderTimeout: Flags.NetworkTimeout,
		WriteTimeout:      0,
		IdleTimeout:       Flags.NetworkTimeout,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go scheduler.Run(cleanupCtx)

	shutdownComplete := setupSignalHandler(server, cleanupCancel)

	err = server.Serve(listener)
	if err == http.ErrServerClosed {
		<-shutdownComplete
	} else {
		stderr.Fatalf("Unable to serve: %s", err)
	}
}

// setupSignalHandler shuts the server down gracefully on SIGINT/SIGTERM,
// also stopping the cleanup scheduler.
func setupSignalHandler(server *http.Server, stopCleanup context.CancelFunc) <-chan struct{} {
	shutdownComplete := make(chan struct{})

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		stdout.Println("Received interrupt signal. Shutting down transferd...")

		go func() {
			<-c
			stdout.Println("Received second interrupt signal. Exiting immediately!")
			os.Exit(1)
		}()

		stopCleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err == nil {
			stdout.Println("Shutdown completed. Goodbye!")
		} else {
			stderr.Printf("Failed to shut down gracefully: %s\n", err)
		}

		close(shutdownComplete)
	}()

	return shutdownComplete
}

// tokenRetentionPolicies converts Flags.TokenRetentionPolicies into the
// handler.RetentionPolicy-valued map pkg/handler expects.
func tokenRetentionPolicies() map[string]handler.RetentionPolicy {
	raw := ParseTokenRetentionPolicies()
	if raw == nil {
		return nil
	}
	policies := make(map[string]handler.RetentionPolicy, len(raw))
	for token, policy := range raw {
		policies[token] = handler.RetentionPolicy(policy)
	}
	return policies
}
