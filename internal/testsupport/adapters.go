package testsupport

import (
	"context"
	"sync"

	"snapflow/internal/services"
)

// StubAnalyzer returns a fixed analysis, or pops errors from Errs first.
type StubAnalyzer struct {
	mu     sync.Mutex
	Result services.Analysis
	Errs   []error
	calls  int
}

// Analyze implements services.Analyzer.
func (a *StubAnalyzer) Analyze(ctx context.Context, filePath, mediaKind string) (services.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.Errs) > 0 {
		err := a.Errs[0]
		a.Errs = a.Errs[1:]
		return services.Analysis{}, err
	}
	return a.Result, nil
}

// Calls returns the number of Analyze invocations.
func (a *StubAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// StubCaptioner returns a fixed caption, or pops errors from Errs first.
type StubCaptioner struct {
	mu      sync.Mutex
	Caption string
	Errs    []error
	calls   int
}

// GenerateCaption implements services.Captioner.
func (c *StubCaptioner) GenerateCaption(ctx context.Context, req services.CaptionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.Errs) > 0 {
		err := c.Errs[0]
		c.Errs = c.Errs[1:]
		return "", err
	}
	return c.Caption, nil
}

// Calls returns the number of GenerateCaption invocations.
func (c *StubCaptioner) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// StubPublisher returns fixed post ids, or pops errors from Errs first.
type StubPublisher struct {
	mu     sync.Mutex
	PostID string
	Errs   []error
	calls  int
	reqs   []services.PublishRequest
}

// Publish implements services.Publisher.
func (p *StubPublisher) Publish(ctx context.Context, req services.PublishRequest) (services.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.reqs = append(p.reqs, req)
	if len(p.Errs) > 0 {
		err := p.Errs[0]
		p.Errs = p.Errs[1:]
		return services.PublishResult{}, err
	}
	return services.PublishResult{PostID: p.PostID}, nil
}

// Calls returns the number of Publish invocations.
func (p *StubPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns a copy of the publish requests seen so far.
func (p *StubPublisher) Requests() []services.PublishRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]services.PublishRequest, len(p.reqs))
	copy(out, p.reqs)
	return out
}
