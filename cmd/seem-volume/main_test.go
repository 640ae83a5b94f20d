package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seem/internal/infra/persistence/sqlite"
	"seem/internal/stand"
	"seem/pkg/taper"
)

const treeList = `species,dbh,height,expansion_factor,period
# cruise plot 7
PSME,52,38,60,1
PSME,34,27,90,0
tshe,41,31,45,2
ACMA3,30,18,20,1
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLIPrintsStandingAndHarvest(t *testing.T) {
	t.Setenv("SEEM_LOG_LEVEL", "warn")
	trees := writeFile(t, "unit7.csv", treeList)
	code, out, errOut := runCLI(t, "-trees", trees, "-policy", "long")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{"stand unit7", "policy long", "standing", "harvest", "total", "trees/ha"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "harvest") != 8 {
		t.Fatalf("expected rows for two harvest periods:\n%s", out)
	}
}

func TestCLIPersistsTablesAndStoresReports(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tables", "seem.db")
	metricsPath := filepath.Join(dir, "seem.prom")
	tracePath := filepath.Join(dir, "trace.jsonl")
	t.Setenv("SEEM_STORAGE_DRIVER", "sqlite")
	t.Setenv("SEEM_SQLITE_PATH", dbPath)
	t.Setenv("SEEM_BLOB_DRIVER", "fs")
	t.Setenv("SEEM_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("SEEM_LOG_FORMAT", "json")
	t.Setenv("SEEM_LOG_LEVEL", "info")
	trees := writeFile(t, "unit7.csv", treeList)

	code, out, errOut := runCLI(t, "-trees", trees, "-period", "1", "-persist", "-report", "csv,html", "-metrics", metricsPath, "-trace", tracePath)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "report csv: file://") || !strings.Contains(out, "report html: file://") {
		t.Fatalf("expected stored report locations:\n%s", out)
	}
	if !strings.Contains(errOut, `"message":"volume tables persisted"`) {
		t.Fatalf("expected persistence log, got %s", errOut)
	}
	metrics, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), "seem_service_operations_total") || !strings.Contains(string(metrics), "seem_volume_table_computed_cells") {
		t.Fatalf("unexpected metrics:\n%s", metrics)
	}

	spans, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	for _, op := range []string{"warm_tables", "standing_volume", "harvest_volumes", "persist_tables"} {
		if !strings.Contains(string(spans), `"operation":"`+op+`"`) {
			t.Fatalf("trace missing %s:\n%s", op, spans)
		}
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	keys, err := store.Keys(context.Background())
	_ = store.Close()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if strings.Join(keys, ",") != "PSME/forwarder,TSHE/forwarder" {
		t.Fatalf("unexpected persisted tables %v", keys)
	}

	code, _, errOut = runCLI(t, "-trees", trees, "-persist")
	if code != 0 {
		t.Fatalf("second run exit %d: %s", code, errOut)
	}
	if !strings.Contains(errOut, `"message":"volume tables warmed"`) || strings.Contains(errOut, `"cells":0`) {
		t.Fatalf("expected restored cells on the second run, got %s", errOut)
	}
}

func TestCLIConfigFile(t *testing.T) {
	t.Setenv("SEEM_LOG_LEVEL", "warn")
	cfg := writeFile(t, "seem.toml", "units = \"english\"\npolicy = \"long\"\n")
	trees := writeFile(t, "english.csv", "species,dbh,height,expansion_factor\nPSME,20,120,25\n")
	code, out, errOut := runCLI(t, "-config", cfg, trees)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "input english") || !strings.Contains(out, "policy long") {
		t.Fatalf("config not applied:\n%s", out)
	}
}

func TestCLIErrors(t *testing.T) {
	t.Setenv("SEEM_LOG_LEVEL", "error")
	trees := writeFile(t, "ok.csv", treeList)
	cases := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no trees", nil, 2, "tree list is required"},
		{"bad flag", []string{"-nope"}, 2, "flag provided but not defined"},
		{"missing file", []string{"-trees", filepath.Join(t.TempDir(), "none.csv")}, 1, "open tree list"},
		{"bad units", []string{"-trees", trees, "-units", "cubits"}, 1, "unknown units"},
		{"bad policy", []string{"-trees", trees, "-policy", "medium"}, 1, "unknown log length policy"},
		{"bad period", []string{"-trees", trees, "-period", "0"}, 1, "positive integer"},
		{"bad report format", []string{"-trees", trees, "-report", "pdf"}, 1, "unsupported format"},
		{"bad species", []string{writeFile(t, "typo.csv", "species,dbh,height,expansion_factor\nPSMA,30,20,10\n")}, 1, "did you mean PSME"},
		{"missing column", []string{writeFile(t, "cols.csv", "species,dbh,expansion_factor\nPSME,30,10\n")}, 1, `missing "height" column`},
	}
	for _, tc := range cases {
		code, _, errOut := runCLI(t, tc.args...)
		if code != tc.code || !strings.Contains(errOut, tc.want) {
			t.Fatalf("%s: exit %d, stderr %q; want %d containing %q", tc.name, code, errOut, tc.code, tc.want)
		}
	}
}

func TestReadTrees(t *testing.T) {
	st, selection, periods, err := readTrees(strings.NewReader(treeList), "unit7", stand.English)
	if err != nil {
		t.Fatalf("readTrees: %v", err)
	}
	if got := st.Species(); len(got) != 3 || got[0] != taper.BigleafMaple {
		t.Fatalf("unexpected species %v", got)
	}
	psme := st.Trees[taper.DouglasFir]
	if psme.Len() != 2 || psme.Units != stand.English || psme.DBH[1] != 34 {
		t.Fatalf("unexpected Douglas-fir list %+v", psme)
	}
	if len(periods) != 2 || periods[0] != 1 || periods[1] != 2 {
		t.Fatalf("unexpected periods %v", periods)
	}
	if got := selection[taper.DouglasFir]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected selection %v", got)
	}

	if _, _, _, err := readTrees(strings.NewReader(""), "empty", stand.Metric); err == nil {
		t.Fatalf("expected empty list error")
	}
	if _, _, _, err := readTrees(strings.NewReader("species,dbh,height,expansion_factor,period\nPSME,x,20,1,\n"), "bad", stand.Metric); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line-numbered parse error, got %v", err)
	}
	if _, _, _, err := readTrees(strings.NewReader("species,dbh,height,expansion_factor,period\nPSME,30,20,1,-1\n"), "bad", stand.Metric); err == nil {
		t.Fatalf("expected negative period error")
	}
}

func TestParsePeriods(t *testing.T) {
	periods, err := parsePeriods(" 3, 1,,2 ")
	if err != nil || len(periods) != 3 || periods[0] != 3 {
		t.Fatalf("parsePeriods = %v %v", periods, err)
	}
	if _, err := parsePeriods("one"); err == nil {
		t.Fatalf("expected error")
	}
}
