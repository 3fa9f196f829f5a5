// Command s3-upload uploads a local file to an S3-compatible bucket,
// splitting it into -j/--jobs parts uploaded concurrently when jobs is
// greater than 1, and sending one plain PUT otherwise. Flags and the credentials-file
// default path follow the teacher's cmd/vaultaire CLI conventions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/FairForge/s3rest/internal/cliconfig"
	"github.com/FairForge/s3rest/internal/credentials"
	"github.com/FairForge/s3rest/internal/metrics"
	"github.com/FairForge/s3rest/internal/multipart"
	"github.com/FairForge/s3rest/internal/ratelimiter"
	"github.com/FairForge/s3rest/internal/signer"
)

type cli struct {
	AccessKey       string `short:"a" name:"access_key" help:"AWS access key ID; overrides the credentials file."`
	SecretKey       string `short:"s" name:"secret_key" help:"AWS secret access key; overrides the credentials file."`
	CredentialsFile string `short:"c" name:"credentials" help:"Path to a shared credentials file." default:""`
	Profile         string `short:"p" name:"profile" default:"default" help:"Credentials file profile to use."`
	Endpoint        string `short:"e" name:"endpoint" required:"" help:"Scheme://host[:port] of the S3-compatible endpoint."`
	Bucket          string `short:"b" name:"bucket" required:"" help:"Destination bucket."`
	Key             string `short:"k" name:"key" required:"" help:"Destination object key."`
	File            string `short:"f" name:"file" required:"" type:"existingfile" help:"Local file to upload."`
	Jobs            int    `short:"j" name:"jobs" default:"1" help:"Maximum concurrent part uploads."`
	Config          string `name:"config" help:"Optional YAML tuning file (retry budget, rate limit)."`
	RateLimit       int64  `short:"r" name:"rate-limit" help:"Throughput cap in bytes per second; 0 means unlimited."`
	MetricsFile     string `short:"m" name:"metrics-file" help:"Write Prometheus text-format metrics here after the upload completes."`
	Region          string `name:"region" default:"us-east-1" help:"AWS region used in the credential scope."`
	Verbose         bool   `short:"v" name:"verbose" help:"Enable debug logging to stderr."`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var c cli
	parser, err := kong.New(&c, kong.Name("s3-upload"), kong.Description("Upload a local file to an S3-compatible bucket with parallel multipart support."))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := zap.NewNop()
	if c.Verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	accessKey, secretKey, err := resolveCredentials(c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "s3-upload:", err)
		return 1
	}

	cfg := cliconfig.Default()
	if c.Config != "" {
		loaded, err := cliconfig.Load(c.Config)
		if err != nil {
			fmt.Fprintln(os.Stderr, "s3-upload:", err)
			return 1
		}
		cfg = loaded
	}
	if c.RateLimit > 0 {
		cfg.RateLimitBPS = c.RateLimit
	}

	rec := metrics.NewRecorder()
	limiter := ratelimiter.New(cfg.RateLimitBPS)

	s := signer.New(signer.NewCredentials(accessKey, secretKey, c.Region), signer.WithLogger(logger))
	transport := &multipart.HTTPTransport{Signer: s}

	orch := multipart.New(s, transport, c.Endpoint, c.Bucket, c.Key,
		multipart.WithConfig(cfg),
		multipart.WithLimiter(limiter),
		multipart.WithMetrics(rec),
		multipart.WithLogger(logger),
		multipart.WithRetryPolicy(cfg.MaxRetries, 100*time.Millisecond, 1600*time.Millisecond),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := orch.Upload(ctx, c.File, c.Jobs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "s3-upload:", err)
		return 1
	}

	if c.MetricsFile != "" {
		if err := writeMetrics(rec, c.MetricsFile); err != nil {
			fmt.Fprintln(os.Stderr, "s3-upload: writing metrics:", err)
		}
	}

	fmt.Println(result.ETag)
	return 0
}

func writeMetrics(rec *metrics.Recorder, path string) error {
	f, err := os.Create(path) // #nosec G304 -- path supplied by the CLI's own -m/--metrics-file flag
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return rec.WriteText(f)
}

// resolveCredentials prefers explicit -a/-s flags, falling back to the
// shared credentials file (defaulting to $HOME/.aws/credentials) and the
// selected profile.
func resolveCredentials(c cli) (accessKey, secretKey string, err error) {
	if c.AccessKey != "" && c.SecretKey != "" {
		return c.AccessKey, c.SecretKey, nil
	}

	path := c.CredentialsFile
	if path == "" {
		path = credentials.DefaultPath()
	}
	if path == "" {
		return "", "", fmt.Errorf("no credentials provided: pass -a/-s or -c/--credentials")
	}

	file, err := credentials.Load(path)
	if err != nil {
		return "", "", err
	}
	profile, err := file.Profile(c.Profile)
	if err != nil {
		return "", "", err
	}
	return profile.AccessKeyID, profile.SecretAccessKey, nil
}
