package picker

import (
	"context"
	"fmt"
	"time"

	"github.com/runger/spoiler/internal/content"
	"github.com/runger/spoiler/internal/htmltext"
)

// untitled labels entries whose rendered title is empty.
const untitled = "(no title)"

// ContentProvider implements Provider over the content API client.
type ContentProvider struct {
	client  *content.Client
	timeout time.Duration
}

// Compile-time check that ContentProvider implements Provider.
var _ Provider = (*ContentProvider)(nil)

// NewContentProvider creates a provider. timeout bounds one whole fetch,
// including every page; zero means no limit beyond ctx.
func NewContentProvider(client *content.Client, timeout time.Duration) *ContentProvider {
	return &ContentProvider{client: client, timeout: timeout}
}

// Fetch lists entries and maps them to options: the rendered title becomes
// the label and the rendered content becomes the payload.
func (p *ContentProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	items, err := p.client.List(ctx, content.Query{
		Status:   content.Status(req.Status),
		PageSize: req.PageSize,
	})
	if err != nil {
		return Response{}, fmt.Errorf("content provider: %w", err)
	}

	options := make([]Option, 0, len(items))
	for _, it := range items {
		options = append(options, Option{
			ID:      it.ID,
			Label:   label(it.Title.Rendered),
			Payload: it.Content.Rendered,
		})
	}
	return Response{RequestID: req.RequestID, Options: options}, nil
}

// ContentResolver implements Resolver over the content API client.
type ContentResolver struct {
	client  *content.Client
	timeout time.Duration
}

var _ Resolver = (*ContentResolver)(nil)

// NewContentResolver creates a resolver.
func NewContentResolver(client *content.Client, timeout time.Duration) *ContentResolver {
	return &ContentResolver{client: client, timeout: timeout}
}

// Resolve fetches the current content of id.
func (r *ContentResolver) Resolve(ctx context.Context, id int64) (Record, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	item, err := r.client.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("content resolver: %w", err)
	}
	return Record{
		ID:      item.ID,
		Title:   label(item.Title.Rendered),
		Content: item.Content.Rendered,
	}, nil
}

func label(renderedTitle string) string {
	l := CleanLabel(htmltext.Inline(renderedTitle))
	if l == "" {
		return untitled
	}
	return l
}
