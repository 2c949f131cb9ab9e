package cmn_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nwtnni/hoplite-go/cmn"
)

func TestDefaultConfig(t *testing.T) {
	c := cmn.Default()
	if c.Net.ControlPort != 50051 || c.Net.BulkPort != 6666 {
		t.Fatalf("unexpected default ports: %+v", c.Net)
	}
	if c.Control.BusyRetryInterval.D() != time.Millisecond {
		t.Fatalf("expected 1ms default busy-retry interval, got %v", c.Control.BusyRetryInterval.D())
	}
}

func TestLoadConfigOverlaysDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"net":{"address":"10.0.0.5","control_port":7000},"reduce":{"max_chain_length":8}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := cmn.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Net.Address != "10.0.0.5" || c.Net.ControlPort != 7000 {
		t.Fatalf("overlay did not apply: %+v", c.Net)
	}
	// bulk port retains the default since the file didn't set it.
	if c.Net.BulkPort != 6666 {
		t.Fatalf("expected default bulk port to survive overlay, got %d", c.Net.BulkPort)
	}
	if c.Reduce.MaxChainLength != 8 {
		t.Fatalf("expected overlay reduce.max_chain_length=8, got %d", c.Reduce.MaxChainLength)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := cmn.LoadConfig("/nonexistent/hoplite-config.json"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
