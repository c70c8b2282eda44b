package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverlay struct{ shown, hidden int }

func (o *fakeOverlay) Show() error { o.shown++; return nil }
func (o *fakeOverlay) Hide() error { o.hidden++; return nil }

func TestPickerCommitReportsSelector(t *testing.T) {
	doc := loadDoc(t, pickHTML)
	rep := &recordingReporter{}
	overlay := &fakeOverlay{}
	p := NewPicker(rep, overlay)

	_, err := p.Hover(doc, doc.Find("#main").Nodes[0])
	assert.ErrorIs(t, err, ErrPickerInactive)

	require.True(t, p.Toggle(true).Success)
	assert.True(t, p.Active())
	assert.Equal(t, 1, overlay.shown)

	label, err := p.Hover(doc, doc.Find("span[data-testid]").Nodes[0])
	require.NoError(t, err)
	assert.Equal(t, `[data-testid="price"]`, label)

	label, err = p.Hover(doc, doc.Find("p.lead").Nodes[0])
	require.NoError(t, err)
	assert.Equal(t, ".lead", label)

	require.NoError(t, p.Commit())
	assert.False(t, p.Active())
	assert.Equal(t, 1, overlay.hidden)

	got := rep.selectors(t)
	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, ".lead", *got[0])
}

func TestPickerCommitWithoutHoverIsNoop(t *testing.T) {
	rep := &recordingReporter{}
	p := NewPicker(rep, nil)
	p.Toggle(true)

	require.NoError(t, p.Commit())
	assert.True(t, p.Active())
	assert.Empty(t, rep.selectors(t))
}

func TestPickerCancelReportsNull(t *testing.T) {
	rep := &recordingReporter{}
	p := NewPicker(rep, nil)

	assert.ErrorIs(t, p.Cancel(), ErrPickerInactive)

	p.Toggle(true)
	require.NoError(t, p.Cancel())
	assert.False(t, p.Active())

	got := rep.selectors(t)
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}

func TestPickerToggleIdempotent(t *testing.T) {
	overlay := &fakeOverlay{}
	p := NewPicker(nil, overlay)

	assert.Equal(t, map[string]any{"enabled": true}, p.Toggle(true).Data)
	res := p.Toggle(true)
	assert.True(t, res.Success)
	assert.Nil(t, res.Data)
	assert.Equal(t, 1, overlay.shown)

	assert.Equal(t, map[string]any{"enabled": false}, p.Toggle(false).Data)
	res = p.Toggle(false)
	assert.True(t, res.Success)
	assert.Nil(t, res.Data)
	assert.Equal(t, 1, overlay.hidden)
}
