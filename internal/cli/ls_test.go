package cli

import (
	"testing"

	"github.com/girdertools/girder-nav/internal/config"
	"github.com/girdertools/girder-nav/internal/models"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     models.NodeRef
		wantHome bool
		wantErr  bool
	}{
		{"no args means home", nil, models.NodeRef{}, true, false},
		{"root level", []string{"root"}, models.RootNode, false, false},
		{"users level", []string{"Users"}, models.UsersNode, false, false},
		{"collections level", []string{"Collections"}, models.CollectionsNode, false, false},
		{"folder with id", []string{"folder", "f1"},
			models.NodeRef{ID: "f1", Type: models.TypeFolder}, false, false},
		{"item with id", []string{"item", "i1"},
			models.NodeRef{ID: "i1", Type: models.TypeItem}, false, false},
		{"real type without id", []string{"folder"}, models.NodeRef{}, false, true},
		{"virtual with id", []string{"root", "x"}, models.NodeRef{}, false, true},
		{"unknown type", []string{"widget", "x"}, models.NodeRef{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, home, err := parseTarget(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTarget failed: %v", err)
			}
			if home != tt.wantHome {
				t.Errorf("home = %v, want %v", home, tt.wantHome)
			}
			if got != tt.want {
				t.Errorf("target = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBreadcrumb(t *testing.T) {
	listing := models.Listing{
		Node: models.NodeRef{Name: "data", ID: "f1", Type: models.TypeFolder},
		RootPath: []models.NodeRef{
			models.RootNode,
			models.UsersNode,
			{Name: "alice", ID: "u1", Type: models.TypeUser},
		},
	}
	if got := breadcrumb(listing); got != "root / Users / alice / data" {
		t.Errorf("breadcrumb = %q", got)
	}
}

func TestPickRow(t *testing.T) {
	rows := []models.NodeRef{
		{Name: "a", ID: "1", Type: models.TypeFolder},
		{Name: "b", ID: "2", Type: models.TypeFolder},
	}

	row, err := pickRow(rows, []string{"cd", "2"})
	if err != nil || row.ID != "2" {
		t.Errorf("row = %+v, err = %v", row, err)
	}

	if _, err := pickRow(rows, []string{"cd", "3"}); err == nil {
		t.Error("expected error for out-of-range row")
	}
	if _, err := pickRow(rows, []string{"cd"}); err == nil {
		t.Error("expected error for missing row number")
	}
}

func TestSetConfigKey(t *testing.T) {
	cfg := config.New()

	if err := setConfigKey(cfg, "api_url", "https://x/api/v1"); err != nil {
		t.Fatal(err)
	}
	if err := setConfigKey(cfg, "proxy.port", "3128"); err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "https://x/api/v1" || cfg.Proxy.Port != 3128 {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := setConfigKey(cfg, "proxy.port", "abc"); err == nil {
		t.Error("expected error for non-numeric port")
	}
	if err := setConfigKey(cfg, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "(not set)" {
		t.Errorf("empty = %q", got)
	}
	if got := maskSecret("short"); got != "********" {
		t.Errorf("short = %q", got)
	}
	if got := maskSecret("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("long = %q", got)
	}
}
