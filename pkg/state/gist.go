package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultGistBaseURL = "https://api.github.com"
	stateFilename      = "pbp_state.json"
)

// GistStore persists the run state as a single file inside a GitHub
// Gist. The whole document is read and overwritten on every run; nothing
// here is transactional, which is acceptable only because the external
// scheduler never overlaps runs.
type GistStore struct {
	gistID     string
	token      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// GistOption configures a GistStore.
type GistOption func(*GistStore)

// WithGistBaseURL overrides the GitHub API host. Tests point this at a
// local server.
func WithGistBaseURL(u string) GistOption {
	return func(g *GistStore) { g.baseURL = u }
}

// NewGistStore creates a store for the given gist id and token. Either
// may be empty; Load then returns empty state and Save reports an error.
func NewGistStore(gistID, token string, log zerolog.Logger, opts ...GistOption) *GistStore {
	g := &GistStore{
		gistID:     gistID,
		token:      token,
		baseURL:    defaultGistBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type gistDocument struct {
	Files map[string]gistFile `json:"files"`
}

type gistFile struct {
	Content string `json:"content"`
}

// Load fetches the state document. Any transport failure or missing
// credential degrades to empty state with a warning; a run starting
// fresh re-fetches the same updates it already processed, which the
// reconciler absorbs.
func (g *GistStore) Load(ctx context.Context) (*RunState, error) {
	if g.gistID == "" || g.token == "" {
		g.log.Warn().Msg("no GIST_ID or GIST_TOKEN set, starting with empty state")
		return New(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gistURL(), nil)
	if err != nil {
		return nil, err
	}
	g.setHeaders(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Msg("could not load gist, starting fresh")
		return New(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn().Int("status", resp.StatusCode).Msg("could not load gist, starting fresh")
		return New(), nil
	}

	var doc gistDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&doc); err != nil {
		g.log.Warn().Err(err).Msg("could not parse gist, starting fresh")
		return New(), nil
	}

	file, ok := doc.Files[stateFilename]
	if !ok {
		return New(), nil
	}

	var st RunState
	if err := json.Unmarshal([]byte(file.Content), &st); err != nil {
		g.log.Warn().Err(err).Msg("state file in gist is corrupt, starting fresh")
		return New(), nil
	}
	st.normalize()
	return &st, nil
}

// Save overwrites the state file in the gist. Failures are returned for
// the caller to log; the next run simply starts from the last state that
// did save.
func (g *GistStore) Save(ctx context.Context, st *RunState) error {
	if g.gistID == "" || g.token == "" {
		return fmt.Errorf("no GIST_ID or GIST_TOKEN set, cannot save state")
	}

	content, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	payload, err := json.Marshal(gistDocument{
		Files: map[string]gistFile{
			stateFilename: {Content: string(content)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode gist payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, g.gistURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save state to gist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to save state to gist: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (g *GistStore) gistURL() string {
	return g.baseURL + "/gists/" + g.gistID
}

func (g *GistStore) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+g.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}
