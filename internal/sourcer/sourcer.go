package sourcer

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hallpass-app/hallpass/internal/model"
)

//go:embed schema.json
var schema []byte

// ErrInvalidSource is returned for manifests that fail validation.
var ErrInvalidSource = errors.New("invalid source")

// Source is a manifest of scheduled messages.
type Source struct {
	URL      string                    `json:"-"`
	Messages []*model.ScheduledMessage `json:"messages"`
}

// Fetcher defines the interface for fetching content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// CompositeFetcher is a fetcher that can handle multiple schemes.
type CompositeFetcher struct {
	fetchers map[string]Fetcher
}

// NewCompositeFetcher creates a new CompositeFetcher.
func NewCompositeFetcher() *CompositeFetcher {
	return &CompositeFetcher{
		fetchers: make(map[string]Fetcher),
	}
}

// NewDefaultFetcher handles http, https and file URLs.
func NewDefaultFetcher(client *http.Client) *CompositeFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := NewCompositeFetcher()
	f.AddFetcher("http", NewHTTPFetcher(client))
	f.AddFetcher("https", NewHTTPFetcher(client))
	f.AddFetcher("file", NewFileFetcher())
	return f
}

// AddFetcher adds a new fetcher for a given scheme.
func (f *CompositeFetcher) AddFetcher(scheme string, fetcher Fetcher) {
	f.fetchers[scheme] = fetcher
}

// Fetch fetches the content of a URL and returns it with a state token that
// changes when the content does.
func (f *CompositeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse url %s: %w", rawURL, err)
	}

	fetcher, ok := f.fetchers[u.Scheme]
	if !ok {
		return nil, "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	return fetcher.Fetch(ctx, rawURL)
}

// HTTPFetcher is an implementation of Fetcher that fetches content over HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{
		client: client,
	}
}

// Fetch fetches the content of a URL and returns it as a byte slice.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch url %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch url %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch url %s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	// Prefer ETag, but fall back to Last-Modified.
	var state string
	if etag := resp.Header.Get("ETag"); etag != "" {
		state = etag
	} else if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		state = lastModified
	} else {
		state = fmt.Sprintf("%x", sha256.Sum256(body))
	}

	return body, state, nil
}

// FileFetcher is an implementation of Fetcher that fetches content from a local file.
type FileFetcher struct{}

// NewFileFetcher creates a new FileFetcher.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

// Fetch reads a file:// URL.
func (f *FileFetcher) Fetch(_ context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse url %s: %w", rawURL, err)
	}

	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, "", err
	}

	return data, fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// Parser defines the interface for parsing content into a manifest.
type Parser interface {
	Parse(url string, data []byte) (*Source, error)
}

// YAMLParser is an implementation of Parser that parses YAML content.
type YAMLParser struct {
	schemaLoader gojsonschema.JSONLoader
	now          func() time.Time
}

// NewYAMLParser creates a parser validating against the built-in manifest schema.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{
		schemaLoader: gojsonschema.NewBytesLoader(schema),
		now:          time.Now,
	}
}

// Parse validates a YAML manifest and returns its messages. Messages without
// an id get one derived from the URL and their position, so importing the
// same manifest twice updates rather than duplicates.
func (p *YAMLParser) Parse(rawURL string, data []byte) (*Source, error) {
	// Convert YAML to JSON, as gojsonschema only works with JSON
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to convert yaml to json: %w", ErrInvalidSource, rawURL, err)
	}

	result, err := gojsonschema.Validate(p.schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to validate document: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidSource, rawURL, strings.Join(problems, "; "))
	}

	s := Source{URL: rawURL}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: failed to unmarshal yaml: %w", ErrInvalidSource, rawURL, err)
	}

	now := p.now().UTC()
	for i, m := range s.Messages {
		if m.ID == "" {
			m.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", rawURL, i))).String()
		}
		m.ShortID = model.GenerateShortID(m.ID)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: message %d: %w", ErrInvalidSource, rawURL, i, err)
		}
	}

	return &s, nil
}

// Sourcer is an interface that defines the methods for sourcing messages.
type Sourcer interface {
	Source(ctx context.Context, url string) (*Source, string, error)
}

// sourcer is the concrete implementation of the Sourcer interface.
type sourcer struct {
	fetcher Fetcher
	parser  Parser
}

// NewSourcer creates a new Sourcer.
func NewSourcer(fetcher Fetcher, parser Parser) Sourcer {
	return &sourcer{
		fetcher: fetcher,
		parser:  parser,
	}
}

// Source fetches and parses a manifest.
func (s *sourcer) Source(ctx context.Context, url string) (*Source, string, error) {
	data, state, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}

	source, err := s.parser.Parse(url, data)
	if err != nil {
		return nil, "", err
	}

	return source, state, nil
}
