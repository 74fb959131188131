package ecosystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var letItGoApps = []App{
	{
		Name:        "api",
		Script:      "go",
		Args:        ArgsFromLine("run main.go"),
		Cwd:         "./api",
		Interpreter: "none",
		Output:      "./logs/api.log",
	},
	{
		Name:        "producer",
		Script:      "go",
		Args:        ArgsFromLine("run main.go"),
		Cwd:         "./producer",
		Interpreter: "none",
		Output:      "./logs/produce.log",
	},
	{
		Name:        "consumer",
		Script:      "go",
		Args:        ArgsFromLine("run main.go"),
		Cwd:         "./consumer",
		Interpreter: "none",
		Output:      "./logs/consumer.log",
	},
}

func TestLoadKeepsOrderAndValues(t *testing.T) {
	for _, name := range []string{"ecosystem.json", "ecosystem.yaml", "ecosystem.hcl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join("testdata", name)

			file, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(letItGoApps, file.Apps); diff != "" {
				t.Fatalf("apps mismatch (-want +got):\n%s", diff)
			}

			absPath, _ := filepath.Abs(path)
			if file.Path != absPath || file.Dir != filepath.Dir(absPath) {
				t.Fatalf("unexpected file location: path=%s dir=%s", file.Path, file.Dir)
			}

			if diff := cmp.Diff([]string{"api", "producer", "consumer"}, file.Names()); diff != "" {
				t.Fatalf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseShapes(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		input  string
		want   []App
	}{
		{
			name:   "json bare list",
			format: FormatJSON,
			input:  `[{"name": "api", "script": "./bin/api", "args": ["--port", "8081"]}]`,
			want:   []App{{Name: "api", Script: "./bin/api", Args: ArgsFromList("--port", "8081")}},
		},
		{
			name:   "json env and error file",
			format: FormatJSON,
			input: `{"apps": [{"name": "worker", "script": "worker", "env": {"MODE": "batch"},
				"output": "out.log", "error": "err.log", "instances": 4}]}`,
			want: []App{{
				Name:   "worker",
				Script: "worker",
				Env:    map[string]string{"MODE": "batch"},
				Output: "out.log",
				Error:  "err.log",
			}},
		},
		{
			name:   "json numeric and boolean env",
			format: FormatJSON,
			input:  `[{"name": "api", "script": "api", "env": {"PORT": 8080, "RATIO": 0.5, "DEBUG": true, "NAME": "api"}}]`,
			want: []App{{
				Name:   "api",
				Script: "api",
				Env:    map[string]string{"PORT": "8080", "RATIO": "0.5", "DEBUG": "true", "NAME": "api"},
			}},
		},
		{
			name:   "yaml numeric and boolean env",
			format: FormatYAML,
			input:  "- name: api\n  script: api\n  env: {PORT: 8080, DEBUG: true}\n",
			want:   []App{{Name: "api", Script: "api", Env: map[string]string{"PORT": "8080", "DEBUG": "true"}}},
		},
		{
			name:   "json empty apps",
			format: FormatJSON,
			input:  `{"apps": []}`,
			want:   []App{},
		},
		{
			name:   "yaml bare list with list args",
			format: FormatYAML,
			input:  "- name: api\n  script: node\n  args: [server.js, --verbose]\n",
			want:   []App{{Name: "api", Script: "node", Args: ArgsFromList("server.js", "--verbose")}},
		},
		{
			name:   "hcl list args and env",
			format: FormatHCL,
			input: `
				app "api" {
				  script = "python3"
				  args   = ["-m", "http.server", 8000]
				  env    = { PYTHONUNBUFFERED = "1" }
				}
			`,
			want: []App{{
				Name:   "api",
				Script: "python3",
				Args:   ArgsFromList("-m", "http.server", "8000"),
				Env:    map[string]string{"PYTHONUNBUFFERED": "1"},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apps, err := Parse([]byte(tc.input), tc.format)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tc.want, apps); diff != "" {
				t.Fatalf("apps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		input  string
		cause  error
		index  int
	}{
		{"malformed json", FormatJSON, `{"apps": [`, nil, -1},
		{"json without apps", FormatJSON, `{"name": "api"}`, ErrMissingApps, -1},
		{"json wrong args type", FormatJSON, `[{"name": "api", "script": "go", "args": 5}]`, ErrInvalidArgs, -1},
		{"json nested env value", FormatJSON, `[{"name": "api", "script": "go", "env": {"PORT": {"value": 1}}}]`, ErrInvalidEnv, -1},
		{"json env list", FormatJSON, `[{"name": "api", "script": "go", "env": ["PORT=1"]}]`, ErrInvalidEnv, -1},
		{"missing name", FormatJSON, `[{"script": "go"}]`, ErrMissingName, 0},
		{"missing script", FormatJSON, `[{"name": "api"}, {"name": "consumer"}]`, ErrMissingScript, 0},
		{"path in name", FormatJSON, `[{"name": "../api", "script": "go"}]`, ErrInvalidName, 0},
		{"unterminated quote", FormatJSON, `[{"name": "api", "script": "go", "args": "run 'main.go"}]`, ErrInvalidArgs, 0},
		{
			"duplicate name", FormatYAML,
			"apps:\n  - {name: api, script: go}\n  - {name: worker, script: go}\n  - {name: api, script: go}\n",
			ErrDuplicateName, 2,
		},
		{"malformed yaml", FormatYAML, "apps: [\n", nil, -1},
		{"empty yaml", FormatYAML, "", ErrMissingApps, -1},
		{"malformed hcl", FormatHCL, `app "api" {`, nil, -1},
		{"hcl unknown attribute", FormatHCL, `app "api" { script = "go" restart = true }`, nil, -1},
		{"hcl misspelled block type", FormatHCL, `apps "api" { script = "go" }`, nil, -1},
		{"hcl unknown top level attribute", FormatHCL, "app \"api\" { script = \"go\" }\nrestart = true\n", nil, -1},
		{"hcl without apps", FormatHCL, "", ErrMissingApps, -1},
		{"hcl missing script", FormatHCL, `app "api" {}`, ErrMissingScript, 0},
		{"unknown format", Format("toml"), `name = "api"`, ErrUnknownFormat, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input), tc.format)
			if err == nil {
				t.Fatalf("expected an error")
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected a *ParseError, got %T: %s", err, err)
			}

			if tc.cause != nil && !errors.Is(err, tc.cause) {
				t.Fatalf("expected error to wrap %v, got %s", tc.cause, err)
			}

			if parseErr.Index != tc.index {
				t.Fatalf("expected index %d, got %d (%s)", tc.index, parseErr.Index, err)
			}
		})
	}
}

func TestLoadErrorHasPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecosystem.json")
	if err := os.WriteFile(path, []byte(`{"apps": [{"name": "api"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected a *ParseError, got %v", err)
	}
	if parseErr.Path != path {
		t.Fatalf("expected the error to mention %s, got %s", path, parseErr.Path)
	}
	if parseErr.Name != "api" {
		t.Fatalf("expected the error to mention the app, got %q", parseErr.Name)
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecosystem.config.js")
	if err := os.WriteFile(path, []byte(`module.exports = { apps: [] }`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	file := File{Apps: letItGoApps}

	all, err := file.Select()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected every app, got %d", len(all))
	}

	// Declaration order wins over the order of the names
	some, err := file.Select("consumer", "api")
	if err != nil {
		t.Fatal(err)
	}
	if len(some) != 2 || some[0].Name != "api" || some[1].Name != "consumer" {
		t.Fatalf("unexpected selection: %+v", some)
	}

	if _, err := file.Select("webhook"); !errors.Is(err, ErrAppNotFound) {
		t.Fatalf("expected ErrAppNotFound, got %v", err)
	}
}
