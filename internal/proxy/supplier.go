package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

// ProxySupplier hands out proxy URLs in round-robin order
type ProxySupplier interface {
	Get() string
	Len() int
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewStaticSupplier uses the proxies as given, without probing them.
func NewStaticSupplier(proxies []string) ProxySupplier {
	return &proxySupplier{proxies: append([]string(nil), proxies...)}
}

// NewProxySupplier checks every proxy against testURL and keeps the ones that
// answer. An empty testURL skips the check.
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) ProxySupplier {
	if len(proxies) == 0 || testURL == "" {
		return NewStaticSupplier(proxies)
	}

	log.Infof("🔄 Testing %d proxies against %s...", len(proxies), testURL)

	ok := make([]bool, len(proxies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, proxyURL := range proxies {
		g.Go(func() error {
			ok[i] = isProxyValid(gctx, proxyURL, testURL)
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]string, 0, len(proxies))
	for i, proxyURL := range proxies {
		if ok[i] {
			valid = append(valid, proxyURL)
		} else {
			log.Infof("❌ Proxy %s is not working, skipping", proxyURL)
		}
	}

	log.Infof("✅ Using %d working proxies out of %d tested", len(valid), len(proxies))
	return &proxySupplier{proxies: valid}
}

type lazySupplier struct {
	once   sync.Once
	build  func() ProxySupplier
	loaded ProxySupplier
}

// NewLazySupplier defers the liveness check until the first Get or Len, so commands that
// never fetch do not touch the network.
func NewLazySupplier(ctx context.Context, proxies []string, testURL string) ProxySupplier {
	return &lazySupplier{build: func() ProxySupplier {
		return NewProxySupplier(ctx, proxies, testURL)
	}}
}

func (l *lazySupplier) supplier() ProxySupplier {
	l.once.Do(func() { l.loaded = l.build() })
	return l.loaded
}

func (l *lazySupplier) Get() string {
	return l.supplier().Get()
}

func (l *lazySupplier) Len() int {
	return l.supplier().Len()
}

// Get returns the next proxy URL, or "" when the pool is empty.
func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)

	return proxy
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetProxy(proxyURL)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Head(testURL)
	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
