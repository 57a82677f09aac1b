package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBackend serves routes keyed by "METHOD /path". Unrouted requests
// answer an empty JSON object so log uploads never fail a command.
func newBackend(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", jsonReply(map[string]any{}))
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsonReply(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

// session runs commands against one backend and one state file, the way
// consecutive invocations from a shell would.
type session struct {
	t     *testing.T
	api    string
	ws     string
	state  string
	config string
}

func newSession(t *testing.T, srv *httptest.Server) *session {
	t.Helper()
	api := "http://127.0.0.1:1/api"
	if srv != nil {
		api = srv.URL + "/api"
	}
	dir := t.TempDir()
	return &session{
		t:      t,
		api:    api,
		ws:     "ws://127.0.0.1:1/ws",
		state:  filepath.Join(dir, "state.db"),
		config: filepath.Join(dir, "missing.yaml"),
	}
}

func (s *session) run(args ...string) (string, string, error) {
	s.t.Helper()
	full := append([]string{
		"--config", s.config,
		"--state", s.state,
		"--api", s.api,
		"--ws", s.ws,
	}, args...)
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(full)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (s *session) mustRun(args ...string) string {
	s.t.Helper()
	out, errOut, err := s.run(args...)
	require.NoError(s.t, err, "stderr: %s", errOut)
	return out
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "version flag", args: []string{"--version"}},
		{name: "help flag", args: []string{"--help"}},
		{name: "unknown command", args: []string{"nonexistent-command"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})

			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("rootCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEveryViewHasACommand(t *testing.T) {
	for _, name := range []string{"chat", "agents", "providers", "workspace", "tasks", "projects",
		"repos", "observability", "security", "prompts", "intelligence", "integrations", "logs"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.NotEqual(t, rootCmd, c, name)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	s := newSession(t, nil)
	s.mustRun("theme")
	require.NotNil(t, cfg)
	assert.Equal(t, s.state, cfg.StatePath)
	assert.Equal(t, s.api, cfg.APIBaseURL())
	assert.Equal(t, "ws://127.0.0.1:1/ws", cfg.WebSocketEndpoint())
}
