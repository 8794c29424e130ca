// Package admin serves the operator-facing diagnostics of the auth backend.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"syscall"
	"time"

	"github.com/heartguard/heartguard-api/internal/database"
	"golang.org/x/sync/errgroup"
)

// Probe checks one backing dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// CheckResult is the outcome of one probe. Error is a short class of the
// failure; the underlying error is only logged.
type CheckResult struct {
	Name    string
	Healthy bool
	Latency time.Duration
	Error   string
}

// Report is a full diagnostics snapshot.
type Report struct {
	Healthy   bool
	Checks    []CheckResult
	Backends  map[string]string
	CheckedAt time.Time
}

// BackendLister names the configured notification senders.
type BackendLister interface {
	Backends() map[string]string
}

// BackendsFunc adapts a function to BackendLister.
type BackendsFunc func() map[string]string

func (f BackendsFunc) Backends() map[string]string { return f() }

type Service interface {
	Diagnostics(ctx context.Context) *Report
}

type service struct {
	probes   []Probe
	backends BackendLister
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService returns a diagnostics service. Each probe runs under timeout.
func NewService(probes []Probe, backends BackendLister, timeout time.Duration, logger *slog.Logger) Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &service{
		probes:   probes,
		backends: backends,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Diagnostics runs every probe concurrently. A failing probe marks the report
// unhealthy but never stops the others.
func (s *service) Diagnostics(ctx context.Context) *Report {
	results := make([]CheckResult, len(s.probes))

	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			start := s.now()
			err := p.Check(pctx)
			res := CheckResult{Name: p.Name, Healthy: err == nil, Latency: s.now().Sub(start)}
			if err != nil {
				res.Error = classify(err)
				s.logger.Warn("diagnostics probe failed", "probe", p.Name, "error", err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := &Report{Healthy: true, Checks: results, CheckedAt: s.now().UTC()}
	for _, r := range results {
		if !r.Healthy {
			report.Healthy = false
		}
	}
	if s.backends != nil {
		report.Backends = s.backends.Backends()
	}
	return report
}

func classify(err error) string {
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.As(err, &dnsErr):
		return "host not found"
	case database.IsUnavailable(err):
		return "unavailable"
	default:
		return "check failed"
	}
}
