package picker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/spoiler/internal/content"
)

const spoilerList = `[
	{"id": 12, "title": {"rendered": "Ending &#8211; Act II"}, "content": {"rendered": "<p>The butler did it.</p>\n"}},
	{"id": 7, "title": {"rendered": ""}, "content": {"rendered": "<p>It was all a dream.</p>\n"}},
	{"id": 3, "title": {"rendered": "<em>Red</em>\n herring"}, "content": {"rendered": ""}}
]`

func newTestContentServer(t *testing.T, delay time.Duration) *content.Client {
	t.Helper()
	router := httprouter.New()
	router.GET("/wp-json/wp/v2/spoiler", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("X-WP-TotalPages", "1")
		_, _ = w.Write([]byte(spoilerList))
	})
	router.GET("/wp-json/wp/v2/spoiler/:id", func(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
		if ps.ByName("id") != "12" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"rest_post_invalid_id","message":"Invalid post ID."}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": 12, "title": {"rendered": "Ending"}, "content": {"rendered": "<p>Updated: the butler did it.</p>"}}`))
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := content.NewClient(srv.URL, "spoiler", content.WithRateLimit(0, 0))
	require.NoError(t, err)
	return c
}

func TestContentProvider_MapsItemsToOptions(t *testing.T) {
	p := NewContentProvider(newTestContentServer(t, 0), time.Second)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 5, Status: StatusPublish, PageSize: Unbounded})
	require.NoError(t, err)

	assert.Equal(t, uint64(5), resp.RequestID)
	assert.Equal(t, []Option{
		{ID: 12, Label: "Ending – Act II", Payload: "<p>The butler did it.</p>\n"},
		{ID: 7, Label: "(no title)", Payload: "<p>It was all a dream.</p>\n"},
		{ID: 3, Label: "Red herring", Payload: ""},
	}, resp.Options)
}

func TestContentProvider_Timeout(t *testing.T) {
	p := NewContentProvider(newTestContentServer(t, time.Minute), 50*time.Millisecond)

	_, err := p.Fetch(context.Background(), Request{PageSize: Unbounded})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContentProvider_DrivesPicker(t *testing.T) {
	sink := &recordingSink{}
	pk := New(sink)
	load(t, pk, NewContentProvider(newTestContentServer(t, 0), time.Second))

	id, _ := pk.CurrentID()
	assert.Equal(t, int64(12), id)
	require.NoError(t, pk.Select(7))
	require.NoError(t, pk.Confirm(context.Background()))
	assert.Equal(t, []Selection{{ID: 7, Payload: "<p>It was all a dream.</p>\n"}}, sink.commits)
}

func TestContentResolver(t *testing.T) {
	r := NewContentResolver(newTestContentServer(t, 0), time.Second)

	rec, err := r.Resolve(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, Record{ID: 12, Title: "Ending", Content: "<p>Updated: the butler did it.</p>"}, rec)

	_, err = r.Resolve(context.Background(), 99)
	assert.ErrorIs(t, err, content.ErrNotFound)
}
