package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSection is a test implementation of the Section interface
type mockSection struct {
	id          string
	data        map[string]any
	setErr      error
	validateErr error
	resets      int
}

func (m *mockSection) ID() string           { return m.id }
func (m *mockSection) Title() string        { return m.id }
func (m *mockSection) Description() string  { return "" }
func (m *mockSection) Data() map[string]any { return m.data }
func (m *mockSection) Validate() error      { return m.validateErr }
func (m *mockSection) Reset()               { m.resets++; m.data = map[string]any{} }

func (m *mockSection) SetData(data map[string]any) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data = data
	return nil
}

// mockStore is a test implementation of the Store interface
type mockStore struct {
	sections map[string]map[string]any
	loadErr  error
	saveErr  error
	saves    int
}

func newMockStore() *mockStore {
	return &mockStore{sections: make(map[string]map[string]any)}
}

func (m *mockStore) Load() error { return m.loadErr }

func (m *mockStore) Save() error {
	m.saves++
	return m.saveErr
}

func (m *mockStore) GetSection(id string) (map[string]any, error) {
	return copySection(m.sections[id]), nil
}

func (m *mockStore) SetSection(id string, data map[string]any) error {
	m.sections[id] = data
	return nil
}

func TestManagerRegister(t *testing.T) {
	m := NewManager(newMockStore())
	require.NoError(t, m.RegisterSection(&mockSection{id: "first"}))
	require.NoError(t, m.RegisterSection(&mockSection{id: "second"}))
	assert.Error(t, m.RegisterSection(&mockSection{id: "first"}))

	sections := m.GetSections()
	require.Len(t, sections, 2)
	assert.Equal(t, "first", sections[0].ID())
	assert.Equal(t, "second", sections[1].ID())

	_, ok := m.GetSection("second")
	assert.True(t, ok)
	_, ok = m.GetSection("third")
	assert.False(t, ok)
}

func TestManagerLoadAll(t *testing.T) {
	store := newMockStore()
	store.sections["good"] = map[string]any{"k": "v"}
	store.sections["bad"] = map[string]any{"k": 1}

	good := &mockSection{id: "good"}
	bad := &mockSection{id: "bad", validateErr: errors.New("nope")}
	empty := &mockSection{id: "empty"}

	m := NewManager(store)
	require.NoError(t, m.RegisterSection(good))
	require.NoError(t, m.RegisterSection(bad))
	require.NoError(t, m.RegisterSection(empty))

	err := m.LoadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section bad: nope")

	assert.Equal(t, "v", good.data["k"])
	assert.Empty(t, bad.data, "invalid section falls back to defaults")
	assert.Equal(t, 1, empty.resets)
}

func TestManagerLoadAllStoreError(t *testing.T) {
	store := newMockStore()
	store.loadErr = errors.New("disk gone")
	m := NewManager(store)
	assert.EqualError(t, m.LoadAll(), "disk gone")
}

func TestManagerSaveAll(t *testing.T) {
	store := newMockStore()
	m := NewManager(store)
	require.NoError(t, m.RegisterSection(&mockSection{id: "a", data: map[string]any{"k": "v"}}))

	require.NoError(t, m.SaveAll())
	assert.Equal(t, "v", store.sections["a"]["k"])
	assert.Equal(t, 1, store.saves)

	require.NoError(t, m.RegisterSection(&mockSection{id: "b", validateErr: errors.New("bad")}))
	assert.ErrorContains(t, m.SaveAll(), "section b: bad")
	assert.Equal(t, 1, store.saves, "nothing is saved when a section is invalid")
}

func TestManagerResetAll(t *testing.T) {
	a := &mockSection{id: "a", data: map[string]any{"k": "v"}}
	m := NewManager(newMockStore())
	require.NoError(t, m.RegisterSection(a))
	m.ResetAll()
	assert.Empty(t, a.data)
}
