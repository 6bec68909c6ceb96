package stages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/retry"
)

// Importers fetches remote documents (component reference, roadmap and the
// like) and materializes them as pages under the source root.
type Importers struct {
	configs    []config.ImporterConfig
	sourceRoot string
	client     *http.Client
	policy     retry.Policy
}

// NewImporters creates the importer aggregate. A nil client gets a default
// with a bounded timeout, so a hung remote surfaces as an ordinary failure.
// An unusable retry policy falls back to the default rather than failing.
func NewImporters(configs []config.ImporterConfig, sourceRoot string, client *http.Client, policy retry.Policy) *Importers {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if err := policy.Validate(); err != nil {
		policy = retry.DefaultPolicy()
	}
	return &Importers{
		configs:    configs,
		sourceRoot: sourceRoot,
		client:     client,
		policy:     policy,
	}
}

// ImportAll runs every importer concurrently. Any one failing fails the
// aggregate; the rest are still allowed to finish.
func (im *Importers) ImportAll(ctx context.Context) error {
	var g errgroup.Group
	for _, ic := range im.configs {
		g.Go(func() error {
			if err := im.importOne(ctx, ic); err != nil {
				return fmt.Errorf("importer %s: %w", ic.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (im *Importers) importOne(ctx context.Context, ic config.ImporterConfig) error {
	// Transient transport failures are retried; a definite 404 is not.
	var body []byte
	err := retry.Do(ctx, im.policy, func() (bool, error) {
		var fetchErr error
		body, fetchErr = im.fetch(ctx, ic.URL)
		return errors.IsTransport(fetchErr), fetchErr
	})
	if err != nil {
		return err
	}

	title := ExtractTitle(body)
	if title == "" {
		slog.Warn("Imported document has no heading", logfields.Importer(ic.Name))
	}

	dest := filepath.Join(im.sourceRoot, filepath.FromSlash(ic.Dest))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return errors.WriteFailure(err, "create destination for %s", ic.Name)
	}
	if err := os.WriteFile(dest, body, 0o640); err != nil { // #nosec G306
		return errors.WriteFailure(err, "write %s", ic.Dest)
	}

	slog.Info("Imported document", logfields.Importer(ic.Name), "title", title, logfields.Bytes(len(body)))
	return nil
}

func (im *Importers) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := im.client.Do(req)
	if err != nil {
		return nil, errors.Transport(err, "fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound(url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Transport(fmt.Errorf("unexpected status %s", resp.Status), "fetch %s", url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transport(err, "read body of %s", url)
	}
	return body, nil
}

// ExtractTitle returns the text of the first heading in a markdown document,
// or "" when the document has none.
func ExtractTitle(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			var buf []byte
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					buf = append(buf, t.Segment.Value(source)...)
				}
			}
			title = string(buf)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}
