package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
channel = "can1"
dbc_file = "/etc/canpulse/model3.dbc"
watch_dbc = true
flick_interval = "15s"
flick_assert = -2
watch = ["0x3c2:VCLEFT_swcLeftScrollTicks"]
mqtt_broker = "localhost:1883"
mqtt_topic = "can/decoded"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if fc.Channel != "can1" {
		t.Errorf("Channel = %q, want can1", fc.Channel)
	}
	if fc.WatchDBC == nil || !*fc.WatchDBC {
		t.Error("WatchDBC not parsed")
	}
	if fc.FlickAssert == nil || *fc.FlickAssert != -2 {
		t.Error("FlickAssert not parsed")
	}
}

func TestLoadFileConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("channel = [not toml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFileConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	assertVal := int64(-2)

	tests := []struct {
		name     string
		file     FileConfig
		changed  map[string]bool
		initial  Config
		check    func(t *testing.T, cfg Config)
		wantErr  bool
	}{
		{
			name: "applies values",
			file: FileConfig{
				Channel:       "can1",
				DBCFile:       "/etc/model3.dbc",
				WatchDBC:      &trueVal,
				FlickInterval: "15s",
				FlickAssert:   &assertVal,
			},
			changed: map[string]bool{},
			initial: DefaultConfig(),
			check: func(t *testing.T, cfg Config) {
				if cfg.Channel != "can1" {
					t.Errorf("Channel = %q, want can1", cfg.Channel)
				}
				if !cfg.WatchDBC {
					t.Error("WatchDBC not applied")
				}
				if cfg.FlickInterval != 15*time.Second {
					t.Errorf("FlickInterval = %v, want 15s", cfg.FlickInterval)
				}
				if cfg.FlickAssert != -2 {
					t.Errorf("FlickAssert = %d, want -2", cfg.FlickAssert)
				}
			},
		},
		{
			name:    "flags take precedence",
			file:    FileConfig{Channel: "can1", DBCFile: "/file.dbc"},
			changed: map[string]bool{"channel": true},
			initial: func() Config {
				cfg := DefaultConfig()
				cfg.Channel = "vcan0" // from flag
				return cfg
			}(),
			check: func(t *testing.T, cfg Config) {
				if cfg.Channel != "vcan0" {
					t.Errorf("Channel = %q, want flag value vcan0", cfg.Channel)
				}
				if cfg.DBCFile != "/file.dbc" {
					t.Errorf("DBCFile = %q, want /file.dbc", cfg.DBCFile)
				}
			},
		},
		{
			name:    "bad duration",
			file:    FileConfig{FlickInterval: "not-a-duration"},
			changed: map[string]bool{},
			initial: DefaultConfig(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&tt.file, &cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if FileExists(path) {
		t.Error("FileExists = true for missing file")
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !FileExists(path) {
		t.Error("FileExists = false for existing file")
	}
	if FileExists(filepath.Dir(path)) {
		t.Error("FileExists = true for a directory")
	}
}
