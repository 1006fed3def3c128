package loader

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// Document is the page scripts are inserted into. AppendScript blocks until
// the script has loaded or failed; on failure the element must not remain.
type Document interface {
	AppendScript(ctx context.Context, el *Element) error
}

// HTTPDocument loads a script by fetching it; any 2xx response counts as loaded.
// Relative sources resolve against BaseURL.
type HTTPDocument struct {
	Client  *http.Client
	BaseURL *url.URL

	mu       sync.Mutex
	elements []*Element
}

func NewHTTPDocument(client *http.Client, baseURL *url.URL) *HTTPDocument {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDocument{Client: client, BaseURL: baseURL}
}

func (d *HTTPDocument) AppendScript(ctx context.Context, el *Element) error {
	target, err := url.Parse(el.Src)
	if err != nil {
		return fmt.Errorf("parse script url: %w", err)
	}
	if d.BaseURL != nil {
		target = d.BaseURL.ResolveReference(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build script request: %w", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch script: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch script: unexpected status %d", resp.StatusCode)
	}

	d.mu.Lock()
	d.elements = append(d.elements, el)
	d.mu.Unlock()
	return nil
}

// Elements returns the inserted elements in insertion order.
func (d *HTTPDocument) Elements() []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Element(nil), d.elements...)
}

var headTemplate = template.Must(template.New("head").Parse(
	`{{range .}}<script src="{{.Src}}" data-consent-category="{{.Category}}"` +
		`{{if .Async}} async{{end}}{{if .Defer}} defer{{end}}` +
		`{{range $k, $v := .Attributes}} {{$k}}="{{$v}}"{{end}}></script>
{{end}}`))

// RenderHead writes one <script> tag per handle.
func RenderHead(w io.Writer, handles []*Handle) error {
	elements := make([]*Element, 0, len(handles))
	for _, h := range handles {
		elements = append(elements, h.Element)
	}
	return headTemplate.Execute(w, elements)
}
