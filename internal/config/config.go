package config

/*------------------------------------------------------------------
 *
 * Purpose:	Configuration for an acoustic network node: the two
 *		interface identities, audio device selection, and MAC
 *		timing parameters.
 *
 * Description:	Two formats are accepted: a YAML file (the normal
 *		path, parsed with gopkg.in/yaml.v3) and a legacy
 *		line-oriented command file, for sites that already
 *		script one. Whichever is loaded, defaults are applied
 *		first so a minimal file only needs to override what
 *		matters.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kc2tty/acoustilink/internal/mac"
)

// Config is a node's complete runtime configuration.
type Config struct {
	NodeIP          [4]byte  `yaml:"node_ip"`
	Netmask         [4]byte  `yaml:"netmask"`
	Gateway         *[4]byte `yaml:"gateway,omitempty"`
	EthernetLink    string   `yaml:"ethernet_link"`
	EthernetIP      [4]byte  `yaml:"ethernet_ip"`
	EthernetNetmask [4]byte  `yaml:"ethernet_netmask"`
	TunName         string   `yaml:"tun_name"`

	AudioDevice string `yaml:"audio_device"`
	SampleRate  int    `yaml:"sample_rate"`

	CWMin          int `yaml:"cw_min"`
	CWMax          int `yaml:"cw_max"`
	MaxBackoffStage int `yaml:"max_backoff_stage"`
	SlotTimeMS     int `yaml:"slot_time_ms"`
	DIFSMS         int `yaml:"difs_ms"`
	AckTimeoutMS   int `yaml:"ack_timeout_ms"`

	DNSSDEnabled bool `yaml:"dns_sd_enabled"`
}

// Default returns a Config with sane defaults for every field this
// package itself interprets. The MAC timing fields are copied from
// internal/mac's constants; the Sender and Receiver use those constants
// directly and do not read these fields.
func Default() Config {
	return Config{
		NodeIP:          [4]byte{192, 168, 1, 1},
		Netmask:         [4]byte{255, 255, 255, 0},
		EthernetLink:    "eth0",
		EthernetIP:      [4]byte{192, 168, 2, 1},
		EthernetNetmask: [4]byte{255, 255, 255, 0},
		TunName:         "actun0",
		AudioDevice:     "default",
		SampleRate:      48000,
		CWMin:           mac.CWMin,
		CWMax:           mac.CWMax,
		MaxBackoffStage: mac.MaxBackoffStage,
		SlotTimeMS:      mac.SlotTimeMS,
		DIFSMS:          mac.DIFSMS,
		AckTimeoutMS:    mac.AckTimeoutMS,
		DNSSDEnabled:    false,
	}
}

// LoadYAML reads and merges a YAML config file over the defaults.
func LoadYAML(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
