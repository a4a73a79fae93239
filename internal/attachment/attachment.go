// Package attachment turns the durable URLs stored on scheduled emails into
// attachment content at send time.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/hallpass-app/hallpass/internal/clients/email"
	hphttp "github.com/hallpass-app/hallpass/internal/http"
	"github.com/hallpass-app/hallpass/internal/model"
)

// ErrFetchFailed is returned when an attachment cannot be retrieved.
var ErrFetchFailed = errors.New("attachment fetch failed")

// DefaultMaxSize caps a single attachment. SendGrid rejects messages over 30MB in total.
const DefaultMaxSize = 10 << 20

// Resolver fetches attachments for an outgoing email.
type Resolver interface {
	Resolve(ctx context.Context, attachments []model.Attachment) ([]email.Attachment, error)
}

// HTTPResolver fetches attachment URLs over HTTP(S).
type HTTPResolver struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPResolver creates a resolver using the shared outbound HTTP client.
func NewHTTPResolver() *HTTPResolver {
	return &HTTPResolver{client: hphttp.NewClient(), maxSize: DefaultMaxSize}
}

// NewHTTPResolverWithClient creates a resolver with a specific client and size limit.
func NewHTTPResolverWithClient(client *http.Client, maxSize int64) *HTTPResolver {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &HTTPResolver{client: client, maxSize: maxSize}
}

// Resolve fetches every attachment in order. Any failure fails the whole set.
func (r *HTTPResolver) Resolve(ctx context.Context, attachments []model.Attachment) ([]email.Attachment, error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	out := make([]email.Attachment, 0, len(attachments))
	for _, a := range attachments {
		fetched, err := r.fetch(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, *fetched)
	}
	return out, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, a model.Attachment) (*email.Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, a.URL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, a.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %s", ErrFetchFailed, a.URL, resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, a.URL, err)
	}
	if int64(len(content)) > r.maxSize {
		return nil, fmt.Errorf("%w: %s: larger than %d bytes", ErrFetchFailed, a.URL, r.maxSize)
	}

	return &email.Attachment{
		Filename:    filename(a),
		ContentType: contentType(a, resp.Header.Get("Content-Type"), content),
		Content:     content,
	}, nil
}

func filename(a model.Attachment) string {
	if a.Filename != "" {
		return a.Filename
	}
	if u, err := url.Parse(a.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return "attachment"
}

func contentType(a model.Attachment, header string, content []byte) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if byExt := mime.TypeByExtension(path.Ext(filename(a))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(content)
}
