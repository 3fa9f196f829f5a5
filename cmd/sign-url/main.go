// Command sign-url prints an AWS SigV4 pre-signed URL for a single S3
// REST operation. Flags are parsed with alecthomas/kong struct tags; the
// rest follows the shape of the teacher's own cmd/vaultaire CLI: zap for
// diagnostics, a plain non-zero exit code on failure.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/FairForge/s3rest/internal/credentials"
	"github.com/FairForge/s3rest/internal/signer"
)

type cli struct {
	AccessKey  string        `short:"a" name:"access_key" required:"" help:"AWS access key ID."`
	SecretKey  string        `short:"s" name:"secret_key" required:"" help:"AWS secret access key."`
	Endpoint   string        `short:"e" name:"endpoint" required:"" help:"Scheme://host[:port] of the S3-compatible endpoint."`
	Method     string        `short:"m" name:"method" default:"GET" help:"HTTP method to sign for."`
	Bucket     string        `short:"b" name:"bucket" help:"Bucket name (path-style); omit for virtual-hosted endpoints."`
	Key        string        `short:"k" name:"key" required:"" help:"Object key."`
	Params     string        `short:"p" name:"params" help:"Extra query parameters as k1=v1;k2=v2."`
	Expiration time.Duration `short:"t" name:"expiration" default:"3600s" help:"How long the URL stays valid."`
	Region     string        `name:"region" default:"us-east-1" help:"AWS region used in the credential scope."`
	Verbose    bool          `short:"v" name:"verbose" help:"Enable debug logging to stderr."`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var c cli
	parser, err := kong.New(&c, kong.Name("sign-url"), kong.Description("Print an AWS SigV4 pre-signed URL for an S3 REST operation."))
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
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	creds := signer.NewCredentials(c.AccessKey, c.SecretKey, c.Region)
	s := signer.New(creds, signer.WithLogger(logger))

	d := signer.RequestDescriptor{
		Method:   strings.ToUpper(c.Method),
		Endpoint: c.Endpoint,
		Bucket:   c.Bucket,
		Key:      c.Key,
		Query:    credentials.ParseParams(c.Params),
	}

	url, err := s.PresignURL(d, c.Expiration)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign-url:", err)
		return 1
	}

	fmt.Println(url)
	return 0
}
