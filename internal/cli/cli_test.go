package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmslite/drivetemp/internal/config"
	"github.com/nmslite/drivetemp/internal/csvline"
	"github.com/nmslite/drivetemp/internal/pipeline"
)

const healthDump = `[
	{"type":"Drive","value":26,"units":"Celsius","status":"Normal","severity":"Normal",
	 "timestamp":1681919000000000000,"system_serial":"ZZ0001C8","component_serial":"HLK031P10000822150Z3"},
	{"type":"PSU","value":1,"timestamp":1681919000000000000},
	{"type":"Drive","value":31.5,"units":"Celsius","status":"Degraded","severity":"Warning",
	 "timestamp":1681919001000000000,"system_serial":"ZZ0001C8","component_serial":"HLK031P10000822150Z4"},
	{"type":"Drive","value":40,"timestamp":"yesterday","system_serial":"ZZ0001C8","component_serial":"X"}
]`

const (
	line1 = "2023-04-19T15:43:20.000000000Z,ZZ0001C8,Drive,HLK031P10000822150Z3,Normal,Normal,Celsius,26"
	line2 = "2023-04-19T15:43:21.000000000Z,ZZ0001C8,Drive,HLK031P10000822150Z4,Degraded,Warning,Celsius,31.5"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeDump(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "health.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}
	return path
}

func TestConvertFromFile(t *testing.T) {
	path := writeDump(t, healthDump)

	res := run(t, "", "convert", "--filename", path)
	require.NoError(t, res.err)
	assert.Equal(t, line1+"\n"+line2+"\n", res.stdout)
	assert.Contains(t, res.stderr, "record skipped")
	assert.Contains(t, res.stderr, pipeline.KindTimestamp)
}

func TestConvertFromStdinWithHeader(t *testing.T) {
	res := run(t, healthDump, "convert", "--header")
	require.NoError(t, res.err)
	assert.Equal(t, csvline.Header+"\n"+line1+"\n"+line2+"\n", res.stdout)
}

func TestConvertDebugMirrorsToStderr(t *testing.T) {
	res := run(t, healthDump, "convert", "--debug", "--workers", "4")
	require.NoError(t, res.err)
	assert.Equal(t, line1+"\n"+line2+"\n", res.stdout)
	assert.Contains(t, res.stderr, line1+"\n"+line2+"\n")
}

func TestConvertOutputFileAndTextfile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "temps.csv")
	prom := filepath.Join(dir, "drivetemp.prom")

	res := run(t, healthDump, "convert", "--output", out, "--metrics-textfile", prom)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, line1+"\n"+line2+"\n", string(data))

	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "drivetemp_records_emitted_total 2")
	assert.Contains(t, string(metrics), `drivetemp_record_errors_total{kind="TimestampError"} 1`)
}

func TestConvertStrict(t *testing.T) {
	res := run(t, healthDump, "convert", "--strict")
	require.Error(t, res.err)
	assert.True(t, errors.Is(res.err, ErrRecordErrors))
	// lines are still written before the run is failed
	assert.Equal(t, line1+"\n"+line2+"\n", res.stdout)
}

func TestConvertDocumentError(t *testing.T) {
	res := run(t, `{"type":"Drive"}`, "convert")
	require.Error(t, res.err)
	assert.True(t, errors.Is(res.err, pipeline.ErrDocumentParse))
	assert.Empty(t, res.stdout)
}

func TestConvertMissingFile(t *testing.T) {
	res := run(t, "", "convert", "--filename", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, res.err)
	assert.Empty(t, res.stdout)
}

func TestConvertHRIMapping(t *testing.T) {
	dump := `[{"HRI":"/appliance/ZZ0001C8/naa.5000cca0bc1a2b3c/disk/temperature",
		"ComponentName":"Drive HLK031P10000822150Z3","Value":26,"Units":"Celsius",
		"Status":"Normal","Severity":"Normal","Date":"2023-04-19T15:43:20Z"}]`

	res := run(t, dump, "convert", "--mapping", "hri")
	require.NoError(t, res.err)
	assert.Equal(t, line1+"\n", res.stdout)
}

func TestConvertWithConfigFile(t *testing.T) {
	dumpPath := writeDump(t, healthDump)
	cfgPath := filepath.Join(t.TempDir(), "drivetemp.yaml")
	cfg := fmt.Sprintf(`
source:
  path: %s
output:
  header: true
logging:
  level: error
`, dumpPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	res := run(t, "", "--config", cfgPath, "convert")
	require.NoError(t, res.err)
	assert.Equal(t, csvline.Header+"\n"+line1+"\n"+line2+"\n", res.stdout)
	assert.NotContains(t, res.stderr, "record skipped")

	// flags win over the file
	res = run(t, "", "--config", cfgPath, "convert", "--header=false")
	require.NoError(t, res.err)
	assert.Equal(t, line1+"\n"+line2+"\n", res.stdout)
}

func TestConvertInvalidFlags(t *testing.T) {
	res := run(t, healthDump, "convert", "--mapping", "nested")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "pipeline.mapping")
}

func TestConfigExample(t *testing.T) {
	res := run(t, "", "config", "example")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "pipeline:")
	assert.Contains(t, res.stdout, "database:")
}

func TestVersion(t *testing.T) {
	res := run(t, "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "drivetemp dev")
}

func TestRunServer(t *testing.T) {
	cfg := config.Default()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() { done <- runServer(ctx, cfg, ln, logger) }()

	base := "http://" + ln.Addr().String()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(base+"/api/v1/convert", "application/json", strings.NewReader(healthDump))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, line1+"\n"+line2+"\n", string(body))
	assert.Equal(t, "1", resp.Header.Get("X-Record-Errors"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
