package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.HidDim != 512 || cfg.Model.NLayers != 2 {
		t.Errorf("unexpected model defaults %+v", cfg.Model)
	}
	if cfg.Train.Seed != 123 {
		t.Errorf("expected seed 123, got %d", cfg.Train.Seed)
	}
	if cfg.Data.MaxTrgLen != 25 || cfg.Data.MinFreq != 10 {
		t.Errorf("unexpected data defaults %+v", cfg.Data)
	}

	// The data folder has no default.
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing data folder to fail validation")
	}
	cfg.Data.DataFolder = "/data"
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config with data folder should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero epochs", func(c *Config) { c.Train.Epochs = 0 }},
		{"teacher forcing above one", func(c *Config) { c.Train.TeacherForcing = 1.5 }},
		{"dropout of one", func(c *Config) { c.Model.DecDropout = 1 }},
		{"no layers", func(c *Config) { c.Model.NLayers = 0 }},
		{"negative clip", func(c *Config) { c.Train.Clip = -1 }},
		{"min freq zero", func(c *Config) { c.Data.MinFreq = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Data.DataFolder = "/data"
			tc.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
