package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/spoiler/internal/picker"
)

var sel = picker.Selection{ID: 42, Payload: "<p>The butler did it.</p>"}

type recordingSink struct {
	name  string
	calls *[]string
	err   error
}

func (s recordingSink) Commit(_ context.Context, _ picker.Selection) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestMulti_CommitsInOrder(t *testing.T) {
	var calls []string
	m := Multi{
		recordingSink{name: "a", calls: &calls},
		nil,
		recordingSink{name: "b", calls: &calls},
	}

	require.NoError(t, m.Commit(context.Background(), sel))
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestMulti_StopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := Multi{
		recordingSink{name: "a", calls: &calls, err: boom},
		recordingSink{name: "b", calls: &calls},
	}

	assert.ErrorIs(t, m.Commit(context.Background(), sel), boom)
	assert.Equal(t, []string{"a"}, calls)
}

func TestWriter_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Commit(context.Background(), sel))
	require.NoError(t, w.Commit(context.Background(), picker.Selection{ID: 7}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":42,"payload":"<p>The butler did it.</p>"}`, lines[0])
	assert.JSONEq(t, `{"id":7,"payload":""}`, lines[1])
}

func TestNewExec_Split(t *testing.T) {
	e, err := NewExec(`notify-send "spoiler picked" --urgency=low`)
	require.NoError(t, err)
	assert.Equal(t, []string{"notify-send", "spoiler picked", "--urgency=low"}, e.Argv())
}

func TestNewExec_Errors(t *testing.T) {
	_, err := NewExec("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = NewExec(`echo "unterminated`)
	assert.Error(t, err)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exec sink tests need /bin/sh")
	}
}

func TestExec_PassesSelection(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "out")

	e, err := NewExec(`/bin/sh -c 'cat > "$OUT"; printf "%s" "$SPOILER_ID" > "$OUT.id"'`, WithEnv("OUT="+out))
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background(), sel))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got picker.Selection
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sel, got)

	id, err := os.ReadFile(out + ".id")
	require.NoError(t, err)
	assert.Equal(t, "42", string(id))
}

func TestExec_FailureIncludesStderr(t *testing.T) {
	requireShell(t)
	e, err := NewExec(`/bin/sh -c 'echo nope >&2; exit 3'`)
	require.NoError(t, err)

	err = e.Commit(context.Background(), sel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestExec_Timeout(t *testing.T) {
	requireShell(t)
	e, err := NewExec(`/bin/sh -c 'sleep 5'`, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	err = e.Commit(context.Background(), sel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExec_FailsPickerConfirm(t *testing.T) {
	requireShell(t)
	e, err := NewExec(`/bin/sh -c 'exit 1'`)
	require.NoError(t, err)

	p := picker.New(e)
	fetch, err := p.Start(context.Background(), staticProvider{}, picker.Request{PageSize: picker.Unbounded})
	require.NoError(t, err)
	require.True(t, p.Resolve(fetch()))

	err = p.Confirm(context.Background())
	assert.ErrorIs(t, err, picker.ErrCommitFailed)
	assert.Equal(t, picker.ModePicking, p.Mode())
}

func TestLimitedBuffer(t *testing.T) {
	var buf bytes.Buffer
	lb := &limitedBuffer{buf: &buf, max: 4}
	n, err := lb.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = lb.Write([]byte("gh"))
	assert.Equal(t, "abcd", buf.String())
}

type staticProvider struct{}

func (staticProvider) Fetch(_ context.Context, req picker.Request) (picker.Response, error) {
	return picker.Response{RequestID: req.RequestID, Options: []picker.Option{{ID: 1, Label: "one", Payload: "1"}}}, nil
}
