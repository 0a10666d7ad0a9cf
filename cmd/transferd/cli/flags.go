// Package cli parses command-line flags and wires the packages under
// pkg/ into a running server: a package-level Flags struct populated
// by ParseFlags, a Serve entry point, and small log/version/pprof
// helpers.
package cli

import (
	"flag"
	"os"
	"strings"
	"time"
)

// Flags holds every command-line-configurable setting.
var Flags struct {
	HttpHost string
	HttpPort string
	Basepath string

	StoragePath string
	BackendAddr string

	ChunkSize               int64
	MaxStorageSize          int64
	MaxUploadSize           int64
	UploadExpirationSeconds int64
	DefaultRetention        string
	DefaultRetentionTTL     int64
	TokenRetentionPolicies  string
	CleanupInterval         time.Duration

	NetworkTimeout                   time.Duration
	GracefulRequestCompletionTimeout time.Duration
	AcquireLockTimeout               time.Duration

	ExposeMetrics bool
	MetricsPath   string
	ExposePprof   bool
	PprofPath     string

	VerboseOutput bool
	ShowVersion   bool
}

// ParseFlags populates Flags from os.Args using one flag.*Var call per
// field.
func ParseFlags() {
	flag.StringVar(&Flags.HttpHost, "host", "0.0.0.0", "Host to bind the HTTP server to")
	flag.StringVar(&Flags.HttpPort, "port", "1080", "Port to bind the HTTP server to")
	flag.StringVar(&Flags.Basepath, "base-path", "/tus/", "Base path of the TUS upload endpoint")

	flag.StringVar(&Flags.StoragePath, "storage-path", "./data", "Directory under which uploads/, files/ and temp/ are created")
	flag.StringVar(&Flags.BackendAddr, "backend", "memory://", "State backend address: memory://, file://<dir>, or redis://host:port")

	flag.Int64Var(&Flags.ChunkSize, "chunk-size", 4<<20, "Bytes streamed per read_chunk call during download")
	flag.Int64Var(&Flags.MaxStorageSize, "max-storage-size", 0, "Maximum total bytes across uploads/ and files/; 0 means unlimited")
	flag.Int64Var(&Flags.MaxUploadSize, "max-upload-size", 0, "Maximum size of a single upload in bytes; 0 means unlimited")
	flag.Int64Var(&Flags.UploadExpirationSeconds, "upload-expiration-seconds", 86400, "Seconds an incomplete upload may live before it is reclaimed")
	flag.StringVar(&Flags.DefaultRetention, "default-retention", "permanent", "Default retention policy: permanent, download_once, or ttl")
	flag.Int64Var(&Flags.DefaultRetentionTTL, "default-retention-ttl", 0, "Default retention_ttl in seconds, used when default-retention is ttl")
	flag.StringVar(&Flags.TokenRetentionPolicies, "token-retention-policies", "", "Comma-separated token=policy pairs, e.g. 'abc=ttl,def=download_once'")
	flag.DurationVar(&Flags.CleanupInterval, "cleanup-interval", time.Minute, "How often the cleanup scheduler sweeps expired uploads and files")

	flag.DurationVar(&Flags.NetworkTimeout, "network-timeout", 60*time.Second, "Read/write deadline applied to the underlying connection")
	flag.DurationVar(&Flags.GracefulRequestCompletionTimeout, "graceful-request-completion-timeout", 10*time.Second, "Grace period given to an in-flight chunk write after client disconnect")
	flag.DurationVar(&Flags.AcquireLockTimeout, "acquire-lock-timeout", 5*time.Second, "How long a request waits to acquire the per-upload lock")

	flag.BoolVar(&Flags.ExposeMetrics, "expose-metrics", true, "Expose Prometheus metrics")
	flag.StringVar(&Flags.MetricsPath, "metrics-path", "/metrics", "Path under which the metrics endpoint is accessible")
	flag.BoolVar(&Flags.ExposePprof, "expose-pprof", false, "Expose pprof and fgprof debug endpoints")
	flag.StringVar(&Flags.PprofPath, "pprof-path", "/debug/", "Path prefix under which pprof/fgprof endpoints are accessible")

	flag.BoolVar(&Flags.VerboseOutput, "verbose", true, "Enable debug-level logging output")
	flag.BoolVar(&Flags.ShowVersion, "version", false, "Print version information and exit")

	flag.Parse()

	backendFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "backend" {
			backendFlagSet = true
		}
	})
	if !backendFlagSet || Flags.BackendAddr == "" {
		if envAddr := os.Getenv("TRANSFERD_BACKEND"); envAddr != "" {
			Flags.BackendAddr = envAddr
		}
	}
}

// ParseTokenRetentionPolicies turns the -token-retention-policies flag
// (or the TRANSFERD_TOKEN_RETENTION_POLICIES environment variable, for
// deployments that would rather not put per-token policy on the command
// line) into a token-to-policy map.
func ParseTokenRetentionPolicies() map[string]string {
	raw := Flags.TokenRetentionPolicies
	if raw == "" {
		raw = os.Getenv("TRANSFERD_TOKEN_RETENTION_POLICIES")
	}
	if raw == "" {
		return nil
	}

	policies := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		policies[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return policies
}
