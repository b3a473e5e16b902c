package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := []byte("listen_addr: \":9090\"\nfeed_url: \"http://localhost:7000/activity\"\nsingle_instance_per_type: false\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.ListenAddr != ":9090" || tune.FeedURL != "http://localhost:7000/activity" {
		t.Fatalf("tuning: %+v", tune)
	}
	if tune.SingleInstancePerType {
		t.Fatal("explicit false overridden")
	}
	// Unset keys keep their defaults.
	if tune.FeedRefreshSeconds != Defaults().FeedRefreshSeconds {
		t.Fatalf("refresh seconds %d", tune.FeedRefreshSeconds)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
