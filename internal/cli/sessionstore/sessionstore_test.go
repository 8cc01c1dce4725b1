package sessionstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck-dev/taskdeck/internal/cli/gateway"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewAtPath(filepath.Join(t.TempDir(), "session.json"))
}

func sampleSession() *gateway.Session {
	return &gateway.Session{
		Token: "tok-1",
		Profile: gateway.Profile{
			ID:               "u1",
			Email:            "alice@example.com",
			Username:         "alice",
			FirstName:        "Alice",
			MiddleName:       "Q",
			LastName:         "Doe",
			Phone:            "555-0100",
			Street:           "1 Main St",
			City:             "Springfield",
			Region:           "IL",
			PostalCode:       "62701",
			Country:          "US",
			OrganizationID:   "org1",
			AvatarURL:        "https://cdn.example.com/a.png",
			TwoFactorEnabled: true,
		},
	}
}

func TestRoundTrip(t *testing.T) {
	s := testStore(t)
	want := sampleSession()

	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got, "rehydrated session must be equivalent")
}

func TestLoad_MissingFile(t *testing.T) {
	s := testStore(t)

	got, err := s.Load()
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoad_MalformedRecord(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{{{{not json"},
		{name: "empty file", content: ""},
		{name: "wrong shape", content: `[1,2,3]`},
		{name: "missing token", content: `{"user":{"id":"u1","email":"a@b.co"}}`},
		{name: "missing identity", content: `{"token":"tok-1","user":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0600))

			got, err := s.Load()
			assert.NoError(t, err, "malformed record must not error")
			assert.Nil(t, got, "malformed record reads as anonymous")
		})
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleSession()))

	require.NoError(t, s.Delete())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is fine.
	assert.NoError(t, s.Delete())
}

func TestSave_FileMode(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sampleSession()))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "record holds a credential")
}

func TestSave_NilSession(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.Save(nil))
}
