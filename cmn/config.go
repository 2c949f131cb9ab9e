package cmn

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Config is the one JSON document hoplite-go loads at startup. It is read
// once by cmd/hoplited and threaded explicitly into hopnode.New — nothing
// in this module re-reads it from a package global.
type Config struct {
	// Net holds this node's own address and the three fixed logical
	// ports (control, bulk, notification-listen). Port numbers are
	// configuration, not protocol: the wire format does not constrain
	// them.
	Net struct {
		Address      Address `json:"address"`
		ControlPort  int     `json:"control_port"`
		BulkPort     int     `json:"bulk_port"`
		NotifyPort   int     `json:"notify_port"`
		DirectoryURL string  `json:"directory_url"`
	} `json:"net"`

	// Reduce carries the bandwidth/latency-derived chain-length bound k
	// fed to reduce.Plan.
	Reduce struct {
		MaxChainLength int `json:"max_chain_length"`
	} `json:"reduce"`

	// Transport tunes the bulk accept loop's concurrency.
	Transport struct {
		MaxInflightRecv int `json:"max_inflight_recv"`
	} `json:"transport"`

	// Control tunes the busy-retry backoff (sleep and retry on a busy
	// reply); overridable for faster tests.
	Control struct {
		BusyRetryInterval DurationJSON `json:"busy_retry_interval"`
	} `json:"control"`

	// TLS is optional; when both fields are set, hopnode's three
	// listeners terminate TLS via cmn/certloader.
	TLS struct {
		CertFile string `json:"cert_file"`
		KeyFile  string `json:"key_file"`
	} `json:"tls"`
}

// DurationJSON lets a time.Duration be written as a human string ("1ms") in
// config.json rather than as raw nanoseconds.
type DurationJSON time.Duration

func (d DurationJSON) D() time.Duration { return time.Duration(d) }

func (d DurationJSON) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *DurationJSON) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "cmn: invalid duration %q", text)
	}
	*d = DurationJSON(parsed)
	return nil
}

// Default returns a Config with every knob set to a workable standalone
// default; callers overlay a config file or flags on top of it.
func Default() *Config {
	c := &Config{}
	c.Net.Address = "127.0.0.1"
	c.Net.ControlPort = 50051
	c.Net.BulkPort = 6666
	c.Net.NotifyPort = 6667
	c.Reduce.MaxChainLength = 4
	c.Transport.MaxInflightRecv = 8
	c.Control.BusyRetryInterval = DurationJSON(time.Millisecond)
	return c
}

// LoadConfig reads and JSON-decodes a config file on top of Default().
func LoadConfig(path string) (*Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cmn: open config %q", path)
	}
	defer f.Close()
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(f).Decode(c); err != nil {
		return nil, errors.Wrapf(err, "cmn: decode config %q", path)
	}
	return c, nil
}
