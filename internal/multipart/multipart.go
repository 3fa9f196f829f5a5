// Package multipart orchestrates an S3 multipart upload of a single local
// file: Initiate, a worker pool of concurrent UploadPart calls, then
// Complete (or Abort on failure). The worker-pool shape — a semaphore
// channel plus sync.WaitGroup plus an indexed results slice — is grounded
// in the teacher's internal/drivers/parallel.go ParallelPut; the
// Initiate/UploadPart/Complete/Abort lifecycle and "abort on any part
// failure" rule are grounded in internal/drivers/idrive.go's
// putMultipart; the retry/backoff policy is grounded in
// internal/drivers/retry.go's RetryPolicy, adapted to treat only
// s3err.Retryable errors as retriable instead of retrying unconditionally.
package multipart

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/s3rest/internal/cliconfig"
	"github.com/FairForge/s3rest/internal/metrics"
	"github.com/FairForge/s3rest/internal/ratelimiter"
	"github.com/FairForge/s3rest/internal/respparse"
	"github.com/FairForge/s3rest/internal/s3err"
	"github.com/FairForge/s3rest/internal/signer"
)

// State is the orchestrator's lifecycle stage.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateCompleting State = "completing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// minPartSize is S3's multipart floor; the orchestrator refuses to plan
// a part smaller than this except for the final part.
const minPartSize = 5 * 1024 * 1024

// Transport is the minimal surface the orchestrator needs from the HTTP
// facade and signer — small enough that tests substitute a fake.
type Transport interface {
	Do(ctx context.Context, d signer.RequestDescriptor, body []byte, filePart *filePart) (status int, respBody, respHeaders []byte, err error)
}

type filePart struct {
	path   string
	offset int64
	length int64
}

// Orchestrator drives one multipart upload end to end.
type Orchestrator struct {
	signer    *signer.Signer
	transport Transport
	endpoint  string
	bucket    string
	key       string

	cfg     cliconfig.Config
	limiter *ratelimiter.Limiter
	metrics *metrics.Recorder
	logger  *zap.Logger

	retryMaxAttempts  int
	retryInitialDelay time.Duration
	retryMaxDelay     time.Duration

	stateMu sync.Mutex
	state   State
}

// State returns the orchestrator's current lifecycle stage. Safe to call
// concurrently with Upload, e.g. from a status-reporting goroutine.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithConfig(cfg cliconfig.Config) Option { return func(o *Orchestrator) { o.cfg = cfg } }
func WithLimiter(l *ratelimiter.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}
func WithMetrics(m *metrics.Recorder) Option { return func(o *Orchestrator) { o.metrics = m } }
func WithLogger(l *zap.Logger) Option        { return func(o *Orchestrator) { o.logger = l } }
func WithRetryPolicy(maxAttempts int, initial, max time.Duration) Option {
	return func(o *Orchestrator) {
		o.retryMaxAttempts = maxAttempts
		o.retryInitialDelay = initial
		o.retryMaxDelay = max
	}
}

// New creates an Orchestrator for one bucket/key target.
func New(s *signer.Signer, transport Transport, endpoint, bucket, key string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		signer:            s,
		transport:         transport,
		endpoint:          endpoint,
		bucket:            bucket,
		key:               key,
		cfg:               cliconfig.Default(),
		logger:            zap.NewNop(),
		retryMaxAttempts:  cliconfig.DefaultMaxRetries,
		retryInitialDelay: 100 * time.Millisecond,
		retryMaxDelay:     1600 * time.Millisecond,
		state:             StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// partPlan is one part's byte range within the source file.
type partPlan struct {
	number int
	offset int64
	length int64
}

// planParts splits fileSize into exactly jobs parts: partSize =
// fileSize/jobs; if it divides evenly every part is partSize, otherwise
// the first jobs-1 parts are partSize and the last carries the
// remainder (spec's uneven-split rule, e.g. jobs=4 over a 17-byte file
// yields {4,4,4,5}). jobs must be >= 1.
func planParts(fileSize int64, jobs int) []partPlan {
	if jobs <= 1 {
		return []partPlan{{number: 1, offset: 0, length: fileSize}}
	}

	partSize := fileSize / int64(jobs)
	parts := make([]partPlan, 0, jobs)
	var offset int64
	for n := 1; n < jobs; n++ {
		parts = append(parts, partPlan{number: n, offset: offset, length: partSize})
		offset += partSize
	}
	parts = append(parts, partPlan{number: jobs, offset: offset, length: fileSize - offset})
	return parts
}

// validatePartSize rejects a jobs value that would push any non-last
// part below S3's 5 MiB multipart floor, per spec §4.6.2. Only partSize
// needs checking: the last part carries partSize plus the remainder, so it
// is never smaller than the others.
func validatePartSize(fileSize int64, jobs int) error {
	if jobs <= 1 {
		return nil
	}
	partSize := fileSize / int64(jobs)
	if partSize < minPartSize {
		return s3err.Newf(s3err.InvalidArgument, "multipart.validatePartSize",
			"jobs=%d would produce a %d-byte part, below the %d-byte S3 minimum", jobs, partSize, minPartSize)
	}
	return nil
}

// partResult is one completed part's outcome.
type partResult struct {
	number int
	etag   string
	err    error
}

// Result is the outcome of a completed multipart upload.
type Result struct {
	ETag          string
	UploadID      string
	CorrelationID string
	Parts         int
}

// Upload runs the full Initiate -> parallel UploadPart -> Complete
// lifecycle for the file at path, using up to jobs concurrent workers.
// On any part's unrecoverable failure, it aborts the upload and returns
// the first error encountered.
func (o *Orchestrator) Upload(ctx context.Context, path string, jobs int) (Result, error) {
	correlationID := uuid.NewString()
	log := o.logger.With(zap.String("correlationId", correlationID), zap.String("bucket", o.bucket), zap.String("key", o.key))

	if o.metrics != nil {
		o.metrics.ActiveUploads.Inc()
		defer o.metrics.ActiveUploads.Dec()
		start := time.Now()
		defer func() { o.metrics.UploadDuration.Observe(time.Since(start).Seconds()) }()
	}

	info, err := os.Stat(path)
	if err != nil {
		o.setState(StateFailed)
		return Result{}, s3err.New(s3err.IO, "multipart.Upload", err)
	}
	if jobs < 1 {
		jobs = 1
	}
	if err := validatePartSize(info.Size(), jobs); err != nil {
		o.setState(StateFailed)
		return Result{}, err
	}

	parts := planParts(info.Size(), jobs)

	if jobs == 1 {
		o.setState(StateUploading)
		result, err := o.uploadSingle(ctx, path, parts[0], correlationID, log)
		if err != nil {
			o.setState(StateFailed)
			return Result{}, err
		}
		o.setState(StateDone)
		return result, nil
	}

	uploadID, err := o.initiate(ctx, log)
	if err != nil {
		o.setState(StateFailed)
		return Result{}, err
	}
	log = log.With(zap.String("uploadId", uploadID))
	log.Info("multipart upload initiated", zap.Int("parts", len(parts)))

	o.setState(StateUploading)
	results, err := o.uploadParts(ctx, path, uploadID, parts, jobs, log)
	if err != nil {
		o.abort(context.WithoutCancel(ctx), uploadID, log)
		o.setState(StateFailed)
		return Result{}, err
	}

	o.setState(StateCompleting)
	etag, err := o.complete(ctx, uploadID, results, log)
	if err != nil {
		o.abort(context.WithoutCancel(ctx), uploadID, log)
		o.setState(StateFailed)
		return Result{}, err
	}

	o.setState(StateDone)
	return Result{ETag: etag, UploadID: uploadID, CorrelationID: correlationID, Parts: len(parts)}, nil
}

// uploadSingle handles the fast path (spec.md jobs==1 / single-part
// upload): a plain signed PUT, no Initiate/Complete round trip.
func (o *Orchestrator) uploadSingle(ctx context.Context, path string, p partPlan, correlationID string, log *zap.Logger) (Result, error) {
	log.Debug("single-part upload, skipping multipart lifecycle")

	status, _, headers, err := o.retryingPut(ctx, p.number, func(attemptCtx context.Context) (int, []byte, []byte, error) {
		d := signer.RequestDescriptor{
			Method:      "PUT",
			Endpoint:    o.endpoint,
			Bucket:      o.bucket,
			Key:         o.key,
			PayloadHash: "UNSIGNED-PAYLOAD",
		}
		return o.transport.Do(attemptCtx, d, nil, &filePart{path: path, offset: p.offset, length: p.length})
	}, log)
	if err != nil {
		return Result{}, err
	}
	if status < 200 || status >= 300 {
		return Result{}, s3err.WithStatus("multipart.uploadSingle", status, fmt.Errorf("unexpected status"))
	}

	etag, err := respparse.HTTPHeader(headers, "ETag")
	if err != nil {
		etag = ""
	}
	return Result{ETag: etag, CorrelationID: correlationID, Parts: 1}, nil
}

func (o *Orchestrator) initiate(ctx context.Context, log *zap.Logger) (string, error) {
	d := signer.RequestDescriptor{
		Method:      "POST",
		Endpoint:    o.endpoint,
		Bucket:      o.bucket,
		Key:         o.key,
		Query:       map[string]string{"uploads": ""},
		PayloadHash: "UNSIGNED-PAYLOAD",
	}
	status, body, _, err := o.retryingPut(ctx, 0, func(attemptCtx context.Context) (int, []byte, []byte, error) {
		return o.transport.Do(attemptCtx, d, nil, nil)
	}, log)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", s3err.WithStatus("multipart.initiate", status, fmt.Errorf("unexpected status"))
	}
	return respparse.XMLTag(body, "UploadId")
}

func (o *Orchestrator) uploadParts(ctx context.Context, path, uploadID string, parts []partPlan, jobs int, log *zap.Logger) ([]partResult, error) {
	sem := make(chan struct{}, jobs)
	results := make([]partResult, len(parts))
	var wg sync.WaitGroup

	cancelCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cancelOnce sync.Once
	var firstErr error
	var mu sync.Mutex

	for i, p := range parts {
		wg.Add(1)
		go func(idx int, plan partPlan) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if cancelCtx.Err() != nil {
				results[idx] = partResult{number: plan.number, err: s3err.New(s3err.Cancelled, "multipart.uploadParts", cancelCtx.Err())}
				return
			}

			if o.limiter != nil {
				if err := o.limiter.WaitN(cancelCtx, int(plan.length)); err != nil {
					results[idx] = partResult{number: plan.number, err: s3err.New(s3err.Cancelled, "multipart.uploadParts", err)}
					return
				}
			}

			etag, err := o.uploadOnePart(cancelCtx, path, uploadID, plan, log)
			results[idx] = partResult{number: plan.number, etag: etag, err: err}

			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancelOnce.Do(cancel)
			}
		}(i, p)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (o *Orchestrator) uploadOnePart(ctx context.Context, path, uploadID string, p partPlan, log *zap.Logger) (string, error) {
	status, _, headers, err := o.retryingPut(ctx, p.number, func(attemptCtx context.Context) (int, []byte, []byte, error) {
		d := signer.RequestDescriptor{
			Method:      "PUT",
			Endpoint:    o.endpoint,
			Bucket:      o.bucket,
			Key:         o.key,
			Query:       map[string]string{"partNumber": fmt.Sprintf("%d", p.number), "uploadId": uploadID},
			PayloadHash: "UNSIGNED-PAYLOAD",
		}
		return o.transport.Do(attemptCtx, d, nil, &filePart{path: path, offset: p.offset, length: p.length})
	}, log)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", s3err.WithStatus("multipart.uploadOnePart", status, fmt.Errorf("unexpected status for part %d", p.number))
	}

	etag, err := respparse.HTTPHeader(headers, "ETag")
	if err != nil {
		return "", s3err.New(s3err.Protocol, "multipart.uploadOnePart", err)
	}

	if o.metrics != nil {
		o.metrics.PartsUploaded.WithLabelValues("success").Inc()
		o.metrics.BytesTransferred.Add(float64(p.length))
	}
	return etag, nil
}

func (o *Orchestrator) complete(ctx context.Context, uploadID string, results []partResult, log *zap.Logger) (string, error) {
	sort.Slice(results, func(i, j int) bool { return results[i].number < results[j].number })

	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<CompleteMultipartUpload xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	for _, r := range results {
		fmt.Fprintf(&body, `<Part><ETag>%s</ETag><PartNumber>%d</PartNumber></Part>`, r.etag, r.number)
	}
	body.WriteString(`</CompleteMultipartUpload>`)

	d := signer.RequestDescriptor{
		Method:      "POST",
		Endpoint:    o.endpoint,
		Bucket:      o.bucket,
		Key:         o.key,
		Query:       map[string]string{"uploadId": uploadID},
		PayloadHash: "UNSIGNED-PAYLOAD",
	}

	log.Debug("completing multipart upload", zap.Int("parts", len(results)))

	status, respBody, _, err := o.retryingPut(ctx, 0, func(attemptCtx context.Context) (int, []byte, []byte, error) {
		return o.transport.Do(attemptCtx, d, body.Bytes(), nil)
	}, log)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", s3err.WithStatus("multipart.complete", status, fmt.Errorf("unexpected status"))
	}
	return respparse.XMLTag(respBody, "ETag")
}

func (o *Orchestrator) abort(ctx context.Context, uploadID string, log *zap.Logger) {
	log.Warn("aborting multipart upload", zap.String("uploadId", uploadID))
	d := signer.RequestDescriptor{
		Method:      "DELETE",
		Endpoint:    o.endpoint,
		Bucket:      o.bucket,
		Key:         o.key,
		Query:       map[string]string{"uploadId": uploadID},
		PayloadHash: "UNSIGNED-PAYLOAD",
	}
	if _, _, _, err := o.transport.Do(ctx, d, nil, nil); err != nil {
		log.Error("abort failed", zap.Error(err))
	}
}

// doFunc is one attempt at sending a signed request.
type doFunc func(ctx context.Context) (status int, body, headers []byte, err error)

// retryingPut runs fn under the orchestrator's retry policy: exponential
// backoff with jitter, retrying only s3err.Retryable failures.
// retryMaxAttempts counts attempts, the first one included: the default of
// 3 allows two retries, after delays of about 100ms and 400ms (each scaled
// by a random factor in [0.5, 1.5)); the 1.6s cap is reached only with
// four or more attempts.
func (o *Orchestrator) retryingPut(ctx context.Context, partNumber int, fn doFunc, log *zap.Logger) (int, []byte, []byte, error) {
	var lastErr error
	maxAttempts := o.retryMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return 0, nil, nil, s3err.New(s3err.Cancelled, "multipart.retryingPut", ctx.Err())
		}

		start := time.Now()
		status, body, headers, err := fn(ctx)
		if o.metrics != nil {
			o.metrics.PartDuration.Observe(time.Since(start).Seconds())
		}

		if err == nil && (status < 500 && status != 408 && status != 429) {
			return status, body, headers, nil
		}

		if err == nil {
			err = s3err.WithStatus("multipart.retryingPut", status, fmt.Errorf("retriable status"))
		}
		lastErr = err

		if !s3err.Retryable(err) || attempt == maxAttempts-1 {
			if o.metrics != nil {
				o.metrics.PartsUploaded.WithLabelValues("failed").Inc()
			}
			return 0, nil, nil, err
		}

		delay := o.backoffDelay(attempt)
		log.Debug("retrying request",
			zap.Int("part", partNumber),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if o.metrics != nil {
			o.metrics.PartRetries.WithLabelValues(string(s3err.KindOf(err))).Inc()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, nil, nil, s3err.New(s3err.Cancelled, "multipart.retryingPut", ctx.Err())
		}
	}
	return 0, nil, nil, lastErr
}

func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	base := float64(o.retryInitialDelay) * math.Pow(4, float64(attempt))
	if base > float64(o.retryMaxDelay) {
		base = float64(o.retryMaxDelay)
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(base * jitter)
}
