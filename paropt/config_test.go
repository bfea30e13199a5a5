// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

func TestConfigValidateRejectsBadFields(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"iterations", func(c *Config) { c.MaxMajorIterations = 0 }},
		{"barrier fraction", func(c *Config) { c.BarrierFraction = 1.5 }},
		{"barrier power", func(c *Config) { c.BarrierPower = 1.0 }},
		{"tau", func(c *Config) { c.FractionToBoundaryTau = 1.0 }},
		{"msub", func(c *Config) { c.MsubMax = 0 }},
		{"armijo", func(c *Config) { c.ArmijoParam = 0.6 }},
		{"penalty fraction", func(c *Config) { c.PenaltyDescentFraction = 0 }},
		{"tolerance", func(c *Config) { c.AbsoluteTol = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}
