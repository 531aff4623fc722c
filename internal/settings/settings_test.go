package settings

import (
	"os"
	"path/filepath"
	"testing"

	"dvexport/internal/metadata"
)

func TestLoadSettings_Missing(t *testing.T) {
	s := LoadSettings(filepath.Join(t.TempDir(), "nope.json"))
	if s == nil {
		t.Fatal("expected empty settings, got nil")
	}
	if s.LastSolution != "" || len(s.SelectedTables) != 0 {
		t.Fatalf("expected zero value, got %+v", s)
	}
}

func TestLoadSettings_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := LoadSettings(path)
	if s.LastSolution != "" {
		t.Fatalf("corrupt file should yield zero value, got %+v", s)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s := &Settings{
		EnvironmentURL: "https://org.crm.dynamics.com",
		LastSolution:   "customizations",
		SelectedTables: []string{"account", "contact"},
	}
	s.SetFormID("account", "f1")
	s.SetViewID("account", "v1")
	s.SetAttributes("account", []string{"accountid", "name"})

	if err := writeJSON(path, s); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	got := LoadSettings(path)
	if got.FormID("account") != "f1" || got.ViewID("account") != "v1" {
		t.Fatalf("unexpected settings: %+v", got)
	}
	if len(got.Attributes("account")) != 2 {
		t.Fatalf("unexpected attributes: %v", got.Attributes("account"))
	}
	if got.Attributes("contact") != nil {
		t.Errorf("expected no saved attributes for contact")
	}
}

func TestSettings_Forget(t *testing.T) {
	s := &Settings{}
	s.SetFormID("account", "f1")
	s.SetAttributes("account", []string{"name"})

	s.Forget("account")
	if s.FormID("account") != "" || s.Attributes("account") != nil {
		t.Fatalf("forget left state behind: %+v", s)
	}
}

func TestCache_IsValidFor(t *testing.T) {
	cache := &Cache{
		EnvironmentURL: "https://org.crm.dynamics.com",
		SolutionName:   "customizations",
		Tables:         []metadata.Table{{LogicalName: "account"}},
	}

	cases := []struct {
		name     string
		url      string
		solution string
		want     bool
	}{
		{"match", "https://org.crm.dynamics.com", "customizations", true},
		{"wrong env", "https://other.crm.dynamics.com", "customizations", false},
		{"wrong solution", "https://org.crm.dynamics.com", "other", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cache.IsValidFor(tc.url, tc.solution); got != tc.want {
				t.Errorf("IsValidFor(%q, %q) = %v, want %v", tc.url, tc.solution, got, tc.want)
			}
		})
	}
}

func TestCache_IsValidFor_EmptyTables(t *testing.T) {
	cache := &Cache{
		EnvironmentURL: "https://org.crm.dynamics.com",
		SolutionName:   "customizations",
	}
	if cache.IsValidFor("https://org.crm.dynamics.com", "customizations") {
		t.Error("cache with no tables should not be valid")
	}

	var nilCache *Cache
	if nilCache.IsValidFor("x", "y") {
		t.Error("nil cache should not be valid")
	}
}

func TestSaver_LastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	saver := NewSaver()
	saver.Save(path, &Settings{LastSolution: "first"})
	saver.Save(path, &Settings{LastSolution: "second"})
	saver.Close()

	got := LoadSettings(path)
	if got.LastSolution != "second" {
		t.Fatalf("expected the newest snapshot on disk, got %q", got.LastSolution)
	}
}

func TestSaver_CloseFlushes(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	cachePath := filepath.Join(dir, "cache.json")

	saver := NewSaver()
	saver.Save(settingsPath, &Settings{LastSolution: "sol"})
	saver.Save(cachePath, &Cache{SolutionName: "sol"})
	saver.Close()

	if _, err := os.Stat(settingsPath); err != nil {
		t.Errorf("settings not flushed: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("cache not flushed: %v", err)
	}
}
