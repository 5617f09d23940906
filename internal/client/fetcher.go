package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"carpics/fetcher/internal/config"
	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

// Recorder is told about every attempted entry.
type Recorder interface {
	RecordFetch(ctx context.Context, record domain.FetchRecord) error
}

type Fetcher interface {
	Fetch(ctx context.Context, plan []domain.PlanEntry) (*FetchReport, error)
	FetchOne(ctx context.Context, entry domain.PlanEntry) FetchResult
	Close() error
}

// FetchError describes a single failed entry.
type FetchError struct {
	URL        string
	Filename   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s -> %s: HTTP %d", e.URL, e.Filename, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s -> %s: %v", e.URL, e.Filename, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrFetchFailed}
	}
	return []error{domain.ErrFetchFailed, e.Err}
}

type FetchResult struct {
	Entry    domain.PlanEntry
	Path     string
	Bytes    int
	Duration time.Duration
	Err      error
}

func (r FetchResult) Record() domain.FetchRecord {
	rec := domain.FetchRecord{
		URL:       r.Entry.URL,
		Filename:  r.Entry.Filename,
		Path:      r.Path,
		Bytes:     r.Bytes,
		Duration:  r.Duration,
		FetchedAt: time.Now().UTC(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

type FetchReport struct {
	Results []FetchResult
}

func (r *FetchReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

func (r *FetchReport) Failed() []FetchResult {
	var failed []FetchResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

type imageFetcher struct {
	rl            ratelimit.Limiter
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	recorder      Recorder
	outputDir     string
	maxWorkers    int
	isolate       bool

	proxyOnce  sync.Once
	proxyMutex sync.Mutex
}

func NewFetcher(cfg config.FetcherConfig, proxySupplier proxy.ProxySupplier, recorder Recorder) Fetcher {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "image/png,image/*;q=0.9,*/*;q=0.8")

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &imageFetcher{
		rl:            rl,
		httpClient:    client,
		proxySupplier: proxySupplier,
		recorder:      recorder,
		outputDir:     cfg.OutputDir,
		maxWorkers:    max(1, cfg.MaxWorkers),
		isolate:       cfg.FailurePolicy == config.FailurePolicyIsolate,
	}
}

// Fetch retrieves every entry. Unless failures are isolated, the first failure
// stops the rest of the plan and is returned; otherwise all failures are joined.
func (f *imageFetcher) Fetch(ctx context.Context, plan []domain.PlanEntry) (*FetchReport, error) {
	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", f.outputDir, err)
	}

	results := make([]FetchResult, len(plan))
	done := make([]bool, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxWorkers)

	for i, entry := range plan {
		if !f.isolate && gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !f.isolate && gctx.Err() != nil {
				return nil
			}
			res := f.FetchOne(gctx, entry)
			results[i], done[i] = res, true
			if res.Err != nil && !f.isolate {
				return res.Err
			}
			return nil
		})
	}
	firstErr := g.Wait()

	report := &FetchReport{Results: make([]FetchResult, 0, len(plan))}
	var errs []error
	for i := range plan {
		if !done[i] {
			continue
		}
		report.Results = append(report.Results, results[i])
		if results[i].Err != nil {
			errs = append(errs, results[i].Err)
		}
	}

	log.Infof("📦 Fetched %d/%d images (%d failed)", report.Succeeded(), len(plan), len(errs))

	if !f.isolate {
		if firstErr == nil && ctx.Err() != nil {
			firstErr = ctx.Err()
		}
		return report, firstErr
	}
	return report, errors.Join(errs...)
}

// FetchOne retrieves a single entry and writes it under the output directory.
func (f *imageFetcher) FetchOne(ctx context.Context, entry domain.PlanEntry) FetchResult {
	start := time.Now()
	res := FetchResult{Entry: entry, Path: filepath.Join(f.outputDir, entry.Filename)}

	body, err := f.download(ctx, entry)
	if err == nil {
		err = writeFile(res.Path, body)
		if err != nil {
			err = &FetchError{URL: entry.URL, Filename: entry.Filename, Err: err}
		}
	}
	res.Bytes = len(body)
	res.Duration = time.Since(start)
	res.Err = err

	if err != nil {
		log.Errorf("❌ %v", err)
	} else {
		log.Debugf("✅ Saved %s (%d bytes) in %s", res.Path, res.Bytes, res.Duration.Round(time.Millisecond))
	}

	if f.recorder != nil {
		if recErr := f.recorder.RecordFetch(ctx, res.Record()); recErr != nil {
			log.Warnf("⚠️ Failed to record fetch of %s: %v", entry.Filename, recErr)
		}
	}

	return res
}

func (f *imageFetcher) download(ctx context.Context, entry domain.PlanEntry) ([]byte, error) {
	f.proxyOnce.Do(f.initProxy)
	f.rl.Take()

	resp, err := f.httpClient.R().
		SetContext(ctx).
		Get(entry.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &FetchError{URL: entry.URL, Filename: entry.Filename, Err: ctx.Err()}
		}
		f.rotateProxy()
		return nil, &FetchError{URL: entry.URL, Filename: entry.Filename, Err: err}
	}

	if resp.IsError() {
		return nil, &FetchError{URL: entry.URL, Filename: entry.Filename, StatusCode: resp.StatusCode()}
	}

	return resp.Bytes(), nil
}

// initProxy picks the first proxy when the first image is fetched.
func (f *imageFetcher) initProxy() {
	if f.proxySupplier == nil {
		return
	}
	if proxyURL := f.proxySupplier.Get(); proxyURL != "" {
		f.httpClient.SetProxy(proxyURL)
		log.Infof("🔗 Using initial proxy: %s", proxyURL)
	}
}

// rotateProxy moves to the next proxy after a transport failure.
func (f *imageFetcher) rotateProxy() {
	if f.proxySupplier == nil || f.proxySupplier.Len() < 2 {
		return
	}
	f.proxyMutex.Lock()
	defer f.proxyMutex.Unlock()

	if next := f.proxySupplier.Get(); next != "" {
		log.Infof("🔄 Switching to proxy: %s", next)
		f.httpClient.SetProxy(next)
	}
}

func (f *imageFetcher) Close() error {
	return f.httpClient.Close()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
