package mangashark

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Options struct {
	// StoreDir is the pebble directory of the durable progress store.
	StoreDir string `yaml:"store_dir"`

	// WindowRadius sections on each side of the active one stay loaded.
	WindowRadius int `yaml:"window_radius"`

	// WindowDebounce delays window recomputation during scroll.
	WindowDebounce time.Duration `yaml:"window_debounce"`

	// FlushDebounce coalesces position updates before a durable write.
	FlushDebounce time.Duration `yaml:"flush_debounce"`

	// FetchTimeout bounds sub-item reloads of unloaded sections.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// SyncTimeout bounds a single best-effort remote sync call.
	SyncTimeout time.Duration `yaml:"sync_timeout"`
}

func (o *Options) SetDefaults() {
	if o.StoreDir == "" {
		o.StoreDir = "mangashark-progress"
	}
	if o.WindowRadius == 0 {
		o.WindowRadius = 1
	}
	if o.WindowDebounce == 0 {
		o.WindowDebounce = 300 * time.Millisecond
	}
	if o.FlushDebounce == 0 {
		o.FlushDebounce = 500 * time.Millisecond
	}
	if o.FetchTimeout == 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.SyncTimeout == 0 {
		o.SyncTimeout = 5 * time.Second
	}
}

func LoadOptions(path string) (opts Options, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err = yaml.Unmarshal(raw, &opts); err != nil {
		return
	}
	opts.SetDefaults()
	return
}
