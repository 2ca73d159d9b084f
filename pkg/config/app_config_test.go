package config

import (
	"os"
	"testing"

	"github.com/jesseduffield/yaml"
)

func TestNewAppConfigDefaults(t *testing.T) {
	conf, err := NewAppConfig("name", "version", "commit", "date", "buildSource", false)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	if conf.UserConfig.Scan.ProcRoot != "/proc" {
		t.Fatalf("Expected default procRoot /proc but got %s", conf.UserConfig.Scan.ProcRoot)
	}
	if conf.UserConfig.Scan.IntervalSeconds != 30 {
		t.Fatalf("Expected default interval 30 but got %d", conf.UserConfig.Scan.IntervalSeconds)
	}
}

func TestWritingToConfigFile(t *testing.T) {
	conf, err := NewAppConfig("name", "version", "commit", "date", "buildSource", false)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	testFn := func(t *testing.T, ac *AppConfig, newValue int) {
		t.Helper()
		updateFn := func(uc *UserConfig) error {
			uc.Scan.IntervalSeconds = newValue
			return nil
		}

		err = ac.WriteToUserConfig(updateFn)
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		file, err := os.OpenFile(ac.ConfigFilename(), os.O_RDONLY, 0o660)
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		sampleUC := UserConfig{}
		err = yaml.NewDecoder(file).Decode(&sampleUC)
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		err = file.Close()
		if err != nil {
			t.Fatalf("Unexpected error: %s", err)
		}

		if sampleUC.Scan.IntervalSeconds != newValue {
			t.Fatalf("Got %v, Expected %v\n", sampleUC.Scan.IntervalSeconds, newValue)
		}
	}

	testFn(t, conf, 10)
	testFn(t, conf, 60)
}

func TestUserConfigValidate(t *testing.T) {
	scenarios := []struct {
		name    string
		mutate  func(*UserConfig)
		wantErr bool
	}{
		{"defaults are valid", func(*UserConfig) {}, false},
		{"negative interval", func(c *UserConfig) { c.Scan.IntervalSeconds = -1 }, true},
		{"empty proc root", func(c *UserConfig) { c.Scan.ProcRoot = "" }, true},
		{"zero process capacity", func(c *UserConfig) { c.Capacity.MaxProcessVertices = 0 }, true},
		{"zero resource capacity", func(c *UserConfig) { c.Capacity.MaxResourceVertices = 0 }, true},
	}

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			s.mutate(&cfg)
			err := cfg.Validate()
			if s.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !s.wantErr && err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		})
	}
}
