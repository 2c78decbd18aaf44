package state

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwars/pbpnudge/internal/logger"
)

func sampleState() *RunState {
	st := New()
	st.Offset = 42
	st.Topics["100"] = TopicRecord{
		LastMessageTime: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		LastUser:        "Alice",
		CampaignName:    "Crownfall",
	}
	st.LastAlerts["100"] = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pbp_state.json")
	store := NewFileStore(path)
	ctx := context.Background()

	// First load is a fresh start.
	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Offset)
	assert.NotNil(t, st.Topics)
	assert.NotNil(t, st.LastAlerts)

	require.NoError(t, store.Save(ctx, sampleState()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pbp_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{bad"), 0644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestRunStateSerializesSortableTimestamps(t *testing.T) {
	data, err := json.Marshal(sampleState())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"last_message_time":"2025-06-15T12:00:00Z"`)
	assert.NotContains(t, string(data), "pbp_logs", "empty log capture stays out of the document")
}

func TestGistStoreLoad(t *testing.T) {
	content, err := json.Marshal(sampleState())
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gists/abc123", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(gistDocument{
			Files: map[string]gistFile{
				stateFilename: {Content: string(content)},
			},
		})
	}))
	defer srv.Close()

	store := NewGistStore("abc123", "secret", logger.Nop(), WithGistBaseURL(srv.URL))
	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleState(), st)
}

func TestGistStoreLoadDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		gistID  string
		token   string
		handler http.HandlerFunc
	}{
		{
			name: "missing credentials",
		},
		{
			name:   "http error",
			gistID: "abc123", token: "secret",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name:   "state file absent from gist",
			gistID: "abc123", token: "secret",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(gistDocument{Files: map[string]gistFile{}})
			},
		},
		{
			name:   "corrupt state content",
			gistID: "abc123", token: "secret",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(gistDocument{
					Files: map[string]gistFile{stateFilename: {Content: "{bad"}},
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []GistOption{}
			if tt.handler != nil {
				srv := httptest.NewServer(tt.handler)
				defer srv.Close()
				opts = append(opts, WithGistBaseURL(srv.URL))
			}

			store := NewGistStore(tt.gistID, tt.token, logger.Nop(), opts...)
			st, err := store.Load(context.Background())

			require.NoError(t, err, "soft failures never error, they degrade")
			assert.Equal(t, New(), st)
		})
	}
}

func TestGistStoreSave(t *testing.T) {
	var got gistDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/gists/abc123", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	store := NewGistStore("abc123", "secret", logger.Nop(), WithGistBaseURL(srv.URL))
	require.NoError(t, store.Save(context.Background(), sampleState()))

	var saved RunState
	require.NoError(t, json.Unmarshal([]byte(got.Files[stateFilename].Content), &saved))
	assert.Equal(t, int64(42), saved.Offset)
	assert.Equal(t, "Alice", saved.Topics["100"].LastUser)
}

func TestGistStoreSaveFailures(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		store := NewGistStore("", "", logger.Nop())
		assert.Error(t, store.Save(context.Background(), New()))
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		store := NewGistStore("abc123", "secret", logger.Nop(), WithGistBaseURL(srv.URL))
		assert.Error(t, store.Save(context.Background(), New()))
	})
}
