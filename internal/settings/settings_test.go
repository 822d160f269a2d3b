package settings

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"ai-chat/internal/domain"
)

type fakeStore struct {
	data    map[string]string
	getErr  error
	putErr  error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) Put(_ context.Context, key, value string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

type fakeVerifier struct {
	result domain.ValidationResult
	err    error
	seen   string
}

func (f *fakeVerifier) Verify(_ context.Context, apiKey string) (domain.ValidationResult, error) {
	f.seen = apiKey
	return f.result, f.err
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	m, err := NewManager(store, "gpt-4o")
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(nil, "")
	require.Error(t, err)

	m, err := NewManager(newFakeStore(), "  ")
	require.NoError(t, err)
	s, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gpt-3.5-turbo", s.Model)
}

func TestLoad_Defaults(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	s, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Settings{User: UserSettings{Theme: ThemeSystem}, Model: "gpt-4o"}, s)
}

func TestLoad_StoredValues(t *testing.T) {
	store := newFakeStore()
	store.data[KeyUserSettings] = `{"username":"ada","email":"ada@example.com","theme":"dark"}`
	store.data[KeyAPIKey] = "sk-stored"
	store.data[KeyModel] = "gpt-3.5-turbo"
	m := newTestManager(t, store)

	s, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, UserSettings{Username: "ada", Email: "ada@example.com", Theme: ThemeDark}, s.User)
	require.Equal(t, "sk-stored", s.APIKey)
	require.Equal(t, "gpt-3.5-turbo", s.Model)
}

func TestLoad_MalformedUserSettings(t *testing.T) {
	store := newFakeStore()
	store.data[KeyUserSettings] = `{not json`
	m := newTestManager(t, store)

	_, err := m.Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode user settings")
}

func TestLoad_StoreError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("disk gone")
	m := newTestManager(t, store)

	_, err := m.Load(context.Background())
	require.ErrorIs(t, err, store.getErr)
}

func TestSaveUser(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store)

	require.NoError(t, m.SaveUser(context.Background(), UserSettings{Username: "ada", Theme: ThemeLight}))
	s, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ada", s.User.Username)
	require.Equal(t, ThemeLight, s.User.Theme)
}

func TestSaveUser_RejectsUnknownTheme(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store)

	err := m.SaveUser(context.Background(), UserSettings{Theme: "sepia"})
	require.ErrorIs(t, err, ErrInvalidTheme)
	require.Empty(t, store.data)
}

func TestSetModel(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store)

	require.Error(t, m.SetModel(context.Background(), " "))
	require.NoError(t, m.SetModel(context.Background(), " gpt-3.5-turbo "))
	require.Equal(t, "gpt-3.5-turbo", store.data[KeyModel])
}

func TestSetAPIKey_StoresOnlyValidKeys(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store)

	bad := &fakeVerifier{result: domain.ValidationResult{IsValid: false, Message: "Invalid API key"}}
	res, err := m.SetAPIKey(context.Background(), "sk-bad", bad)
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Equal(t, "Invalid API key", res.Message)
	require.NotContains(t, store.data, KeyAPIKey)

	good := &fakeVerifier{result: domain.ValidationResult{IsValid: true}}
	res, err = m.SetAPIKey(context.Background(), " sk-good ", good)
	require.NoError(t, err)
	require.True(t, res.IsValid)
	require.Equal(t, "sk-good", good.seen)
	require.Equal(t, "sk-good", store.data[KeyAPIKey])
}

func TestSetAPIKey_EmptyKeySkipsVerifier(t *testing.T) {
	m := newTestManager(t, newFakeStore())
	v := &fakeVerifier{}

	res, err := m.SetAPIKey(context.Background(), "   ", v)
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Equal(t, "No API key provided", res.Message)
	require.Empty(t, v.seen)
}

func TestSetAPIKey_Errors(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	_, err := m.SetAPIKey(context.Background(), "sk", nil)
	require.Error(t, err)

	_, err = m.SetAPIKey(context.Background(), "sk", &fakeVerifier{err: errors.New("offline")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "verify api key")

	store := newFakeStore()
	store.putErr = errors.New("read-only")
	m = newTestManager(t, store)
	_, err = m.SetAPIKey(context.Background(), "sk", &fakeVerifier{result: domain.ValidationResult{IsValid: true}})
	require.ErrorIs(t, err, store.putErr)
}

func TestClear_RemovesExactlyThreeKeys(t *testing.T) {
	store := newFakeStore()
	store.data[KeyUserSettings] = `{"theme":"dark"}`
	store.data[KeyAPIKey] = "sk"
	store.data[KeyModel] = "gpt-4o"
	store.data["unrelated"] = "keep"
	m := newTestManager(t, store)

	s, err := m.Clear(context.Background(), false)
	require.NoError(t, err)

	sort.Strings(store.deleted)
	require.Equal(t, []string{KeyAPIKey, KeyModel, KeyUserSettings}, store.deleted)
	require.Equal(t, map[string]string{"unrelated": "keep"}, store.data)
	require.Equal(t, "gpt-3.5-turbo", s.Model)
	require.Equal(t, ThemeSystem, s.User.Theme)
	require.Empty(t, s.APIKey)
}

func TestClear_WithServerKeyKeepsDefaultModel(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	s, err := m.Clear(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", s.Model)
}
