package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seem/internal/scaling"
	"seem/internal/stand"
	"seem/pkg/taper"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const tomlConfig = `
units = "english"
policy = "long"

[policies.long]
preferred_log_length = 10.0
scribner = "recovery"

[species.PSME]
stump_height = 0.3
maximum_height = 90.0
`

const yamlConfig = `
units: english
policy: long
policies:
  long:
    preferred_log_length: 10.0
    scribner: recovery
species:
  PSME:
    stump_height: 0.3
    maximum_height: 90.0
`

func TestLoadTOMLAndYAMLAgree(t *testing.T) {
	fromTOML, err := Load(writeFile(t, "seem.toml", tomlConfig))
	if err != nil {
		t.Fatalf("Load toml: %v", err)
	}
	fromYAML, err := Load(writeFile(t, "seem.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	for name, cfg := range map[string]Config{"toml": fromTOML, "yaml": fromYAML} {
		if cfg.Units != stand.English || cfg.Policy != scaling.LongLogs {
			t.Fatalf("%s: unexpected settings %+v", name, cfg)
		}
		long := cfg.Policies[scaling.LongLogs]
		if long.PreferredLogLength != 10 || long.Scribner != scaling.ScribnerRecovery || long.Name != "long" {
			t.Fatalf("%s: unexpected long policy %+v", name, long)
		}
		if cfg.Policies[scaling.ForwarderLogs] != scaling.DefaultBuckingPolicy(scaling.ForwarderLogs) {
			t.Fatalf("%s: forwarder policy should keep its defaults", name)
		}
		want := taper.DefaultScalingParameters(taper.DouglasFir)
		want.StumpHeight = 0.3
		want.MaximumHeight = 90
		if cfg.Species[taper.DouglasFir] != want {
			t.Fatalf("%s: PSME parameters = %+v, want %+v", name, cfg.Species[taper.DouglasFir], want)
		}
	}
}

func TestCatalogOptionsApplyOverrides(t *testing.T) {
	cfg, err := Load(writeFile(t, "seem.yml", yamlConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	catalog, err := scaling.NewCatalog(cfg.CatalogOptions()...)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if catalog.Parameters(taper.DouglasFir).StumpHeight != 0.3 {
		t.Fatalf("expected stump height override to reach the catalog")
	}
	if catalog.Policy(scaling.LongLogs).PreferredLogLength != 10 {
		t.Fatalf("expected long policy override to reach the catalog")
	}
	table, _, err := catalog.Table(taper.DouglasFir, scaling.LongLogs)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if _, h := table.Dimensions(); h != 91 {
		t.Fatalf("expected 91 height classes, got %d", h)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"unknown toml key", "a.toml", "colour = \"red\"\n", "unknown keys"},
		{"unknown species toml key", "b.toml", "[species.PSME]\nstump = 0.3\n", "species.PSME.stump"},
		{"unknown yaml key", "c.yaml", "colour: red\n", "colour"},
		{"unknown species", "d.toml", "[species.XXXX]\nstump_height = 0.3\n", "unknown species"},
		{"bad units", "e.yaml", "units: cubits\n", "units"},
		{"bad policy", "f.toml", "policy = \"tree-length\"\n", "policy"},
		{"bad scribner", "g.yaml", "policies:\n  forwarder:\n    scribner: cubic\n", "Scribner"},
		{"invalid parameters", "h.toml", "[species.TSHE]\nmaximum_diameter = -1.0\n", "maximum_diameter"},
		{"non-positive length", "i.yaml", "policies:\n  long:\n    preferred_log_length: 0\n", "preferred_log_length"},
	}
	for _, tc := range cases {
		_, err := Load(writeFile(t, tc.file, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
	if _, err := Load("seem.json"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(Default().CatalogOptions()) != len(scaling.Policies) {
		t.Fatalf("expected one option per policy")
	}
}
