package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-backup/internal/errors"
)

// execute runs the root command with fresh global state
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, func(*bytes.Buffer) io.Reader { return strings.NewReader(stdin) }, args...)
}

// executeWithInput is execute with stdin built from the command's own output
func executeWithInput(t *testing.T, input func(out *bytes.Buffer) io.Reader, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(input(&out))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default so values do not leak
// between executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// isolate points every configuration source at an empty temporary directory
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, name := range []string{"DATABASE_URL", "CLIENT_ID", "MS_CLIENT_ID", "TENANT_ID", "MS_TENANT_ID",
		"ONEDRIVE_REFRESH_TOKEN", "MS_CLIENT_SECRET", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(name, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	SetVersionInfo("1.2.3", "2024-03-01", "abc123", "go1.25")

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestConfigCommand_Sample(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "database:")
	assert.Contains(t, out, "oauth:")
	assert.Contains(t, out, "onedrive:")
}

func TestConfigCommand_Env(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "config", "--env")
	require.NoError(t, err)
	assert.Contains(t, out, "TABLE_BACKUP_OAUTH_CLIENT_ID\n")
	assert.Contains(t, out, "ONEDRIVE_REFRESH_TOKEN\n")
}

func TestConfigCommand_EffectiveMasksSecrets(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "backup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: mysql
  host: db.internal
  username: backup
  password: db-secret
oauth:
  client_id: app-id
  tenant_id: contoso
`), 0o600))
	t.Setenv("ONEDRIVE_REFRESH_TOKEN", "rt-secret")

	out, err := execute(t, "", "config", "--effective", "--config", path, "--folder", "Nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "host: db.internal")
	assert.Contains(t, out, "folder: Nightly")
	assert.NotContains(t, out, "db-secret")
	assert.NotContains(t, out, "rt-secret")
	assert.Contains(t, out, "********")
}

func TestRun_MissingConfiguration(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "run")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.GetErrorType(err))
	assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
	assert.Contains(t, errors.FormatUserError(err), "oauth.client_id")
}

func TestRun_ExplicitConfigFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, "", "--config", filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
}

func TestRun_InvalidOutputFormat(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "run", "-o", "table")
	assert.Error(t, err)
}

// createSQLiteDatabase writes the two default tables, skipping when the
// driver was built without cgo
func createSQLiteDatabase(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE registros (id INTEGER, name TEXT)`); err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED") {
			t.Skip("sqlite3 driver requires cgo")
		}
		require.NoError(t, err)
	}
	for _, stmt := range []string{
		`INSERT INTO registros VALUES (1, 'alpha'), (2, 'beta, gamma')`,
		`CREATE TABLE demandas (code TEXT)`,
		`INSERT INTO demandas VALUES ('D-1')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

type recordingGraph struct {
	*httptest.Server
	mu      sync.Mutex
	uploads map[string]string
	auth    []string
}

func newRecordingGraph(t *testing.T) *recordingGraph {
	t.Helper()
	g := &recordingGraph{uploads: make(map[string]string)}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.uploads[r.URL.Path] = string(body)
		g.auth = append(g.auth, r.Header.Get("Authorization"))
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"item","name":"x","size":%d}`, len(body))
	}))
	t.Cleanup(g.Close)
	return g
}

var stateParam = regexp.MustCompile(`[?&]state=([A-Za-z0-9_-]+)`)

// redirectInput answers the paste prompt with the redirect the identity
// platform would send, echoing the state of the printed sign-in URL
type redirectInput struct {
	out   *bytes.Buffer
	query string
	r     io.Reader
}

func (ri *redirectInput) Read(p []byte) (int, error) {
	if ri.r == nil {
		state := ""
		if m := stateParam.FindStringSubmatch(ri.out.String()); m != nil {
			state = m[1]
		}
		ri.r = strings.NewReader("http://localhost/?" + ri.query + "&state=" + state + "\n")
	}
	return ri.r.Read(p)
}

func pasteRedirect(query string) func(*bytes.Buffer) io.Reader {
	return func(out *bytes.Buffer) io.Reader {
		return &redirectInput{out: out, query: query}
	}
}

func newTokenServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contoso/oauth2/v2.0/token" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_EndToEndWithSQLite(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "app.db")
	createSQLiteDatabase(t, dbPath)

	tokens := newTokenServer(t, `{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`)
	graph := newRecordingGraph(t)

	t.Setenv("TABLE_BACKUP_DATABASE_DRIVER", "sqlite3")
	t.Setenv("TABLE_BACKUP_DATABASE_DATABASE", dbPath)
	t.Setenv("TABLE_BACKUP_OAUTH_AUTHORITY_HOST", tokens.URL)
	t.Setenv("TABLE_BACKUP_ONEDRIVE_GRAPH_URL", graph.URL+"/v1.0")
	t.Setenv("CLIENT_ID", "app-id")
	t.Setenv("TENANT_ID", "contoso")
	t.Setenv("ONEDRIVE_REFRESH_TOKEN", "rt-1")
	t.Setenv("TABLE_BACKUP_MIRRORS_LOCAL_DIRECTORY", filepath.Join(dir, "nas"))

	out, err := execute(t, "", "run", "-o", "json", "--dir", filepath.Join(dir, "out"))
	require.NoError(t, err)

	var report struct {
		State     string `json:"state"`
		ExitCode  int    `json:"exit_code"`
		Artifacts []struct {
			File string `json:"file"`
			Rows int64  `json:"rows"`
		} `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "done", report.State)
	assert.Equal(t, 0, report.ExitCode)
	require.Len(t, report.Artifacts, 2)
	assert.Equal(t, int64(2), report.Artifacts[0].Rows)

	graph.mu.Lock()
	defer graph.mu.Unlock()
	assert.Equal(t, "id,name\n1,alpha\n2,\"beta, gamma\"\n",
		graph.uploads["/v1.0/me/drive/root:/Backups/registros.csv:/content"])
	assert.Equal(t, "code\nD-1\n",
		graph.uploads["/v1.0/me/drive/root:/Backups/demandas.csv:/content"])
	assert.Equal(t, []string{"Bearer at-123", "Bearer at-123"}, graph.auth)

	_, err = os.Stat(filepath.Join(dir, "out", "registros.csv"))
	assert.NoError(t, err)

	// the local mirror uses the OneDrive folder, defaulted when unset
	mirrored, err := os.ReadFile(filepath.Join(dir, "nas", "Backups", "registros.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,alpha\n2,\"beta, gamma\"\n", string(mirrored))
}

func TestRun_DatabaseFailureUploadsNothing(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "app.db")
	createSQLiteDatabase(t, dbPath)

	graph := newRecordingGraph(t)
	t.Setenv("TABLE_BACKUP_DATABASE_DRIVER", "sqlite3")
	t.Setenv("TABLE_BACKUP_DATABASE_DATABASE", dbPath)
	t.Setenv("TABLE_BACKUP_ONEDRIVE_GRAPH_URL", graph.URL+"/v1.0")
	t.Setenv("CLIENT_ID", "app-id")
	t.Setenv("TENANT_ID", "contoso")
	t.Setenv("ONEDRIVE_REFRESH_TOKEN", "rt-1")

	cfg := filepath.Join(dir, "backup.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
export:
  queries:
    - name: registros
      sql: SELECT * FROM registros
    - name: missing
      sql: SELECT * FROM no_such_table
`), 0o600))

	_, err := execute(t, "", "run", "--config", cfg, "--dir", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Equal(t, errors.ExitDatabase, errors.ExitCode(err))

	graph.mu.Lock()
	defer graph.mu.Unlock()
	assert.Empty(t, graph.uploads)
}

func TestAuthorize_ClientCredentialsNeedsNoBootstrap(t *testing.T) {
	isolate(t)
	t.Setenv("TABLE_BACKUP_OAUTH_GRANT", "client_credentials")

	_, err := execute(t, "", "authorize", "--no-browser", "--no-interactive-check")
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
}

func TestAuthorize_SavesRefreshToken(t *testing.T) {
	dir := isolate(t)
	tokens := newTokenServer(t, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600,"refresh_token":"rt-new"}`)
	tokenFile := filepath.Join(dir, "refresh_token")

	t.Setenv("TABLE_BACKUP_OAUTH_AUTHORITY_HOST", tokens.URL)
	t.Setenv("TABLE_BACKUP_OAUTH_REFRESH_TOKEN_FILE", tokenFile)
	t.Setenv("CLIENT_ID", "app-id")
	t.Setenv("TENANT_ID", "contoso")

	out, err := executeWithInput(t, pasteRedirect("code=auth-code"), "authorize", "--no-browser", "--no-interactive-check")
	require.NoError(t, err)
	assert.Contains(t, out, tokens.URL+"/contoso/oauth2/v2.0/authorize")
	assert.Contains(t, out, "rt-new")

	saved, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "rt-new", strings.TrimSpace(string(saved)))
}

func TestAuthorize_RedirectWithoutCode(t *testing.T) {
	isolate(t)
	t.Setenv("CLIENT_ID", "app-id")
	t.Setenv("TENANT_ID", "contoso")
	t.Setenv("ONEDRIVE_REFRESH_TOKEN", "unused")

	_, err := executeWithInput(t, pasteRedirect("foo=bar"), "authorize", "--no-browser", "--no-interactive-check")
	require.Error(t, err)
	assert.Contains(t, errors.FormatUserError(err), "no 'code' parameter")
	assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
}

func TestAuthorize_RedirectMustCarryState(t *testing.T) {
	dir := isolate(t)
	exchanged := false
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanged = true
		http.NotFound(w, r)
	}))
	defer tokens.Close()
	tokenFile := filepath.Join(dir, "refresh_token")

	t.Setenv("TABLE_BACKUP_OAUTH_AUTHORITY_HOST", tokens.URL)
	t.Setenv("TABLE_BACKUP_OAUTH_REFRESH_TOKEN_FILE", tokenFile)
	t.Setenv("CLIENT_ID", "app-id")
	t.Setenv("TENANT_ID", "contoso")

	for _, redirect := range []string{
		"http://localhost/?code=auth-code\n",
		"http://localhost/?code=auth-code&state=forged\n",
	} {
		_, err := execute(t, redirect, "authorize", "--no-browser", "--no-interactive-check")
		require.Error(t, err)
		assert.Equal(t, errors.ExitConfiguration, errors.ExitCode(err))
		assert.Contains(t, errors.FormatUserError(err), "state")
	}

	assert.False(t, exchanged, "a redirect without the issued state is never exchanged")
	_, err := os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))
}
