package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hallpass-app/hallpass/internal/sourcer"
)

// Poller checks a list of manifests and reports the ones that changed.
type Poller struct {
	sourcer sourcer.Sourcer

	mu         sync.Mutex
	knownState map[string]string
}

// New creates a new Poller.
func New(sourcer sourcer.Sourcer) *Poller {
	return &Poller{
		sourcer:    sourcer,
		knownState: make(map[string]string),
	}
}

// Poll checks for updates in the sources and returns the manifests whose content changed.
func (p *Poller) Poll(ctx context.Context, urls []string) ([]*sourcer.Source, error) {
	var allSources []*sourcer.Source
	var lastErr error
	for _, url := range urls {
		source, err := p.pollURL(ctx, url)
		if err != nil {
			// If a source can't be found, we log the error and continue.
			slog.Warn("error checking source", "url", url, "error", err)
			lastErr = err
			continue
		}
		if source != nil {
			allSources = append(allSources, source)
		}
	}

	// If we failed to poll all sources, and we have no sources to return,
	// then we should return the last error we saw.
	if len(allSources) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to poll any sources: %w", lastErr)
	}
	return allSources, nil
}

func (p *Poller) pollURL(ctx context.Context, url string) (*sourcer.Source, error) {
	source, state, err := p.sourcer.Source(ctx, url)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.knownState[url] == state {
		return nil, nil // No change
	}

	p.knownState[url] = state
	return source, nil
}
