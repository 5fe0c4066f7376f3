// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package cgc

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Setup describes a measurement site: which device family is attached
// and which logical ports bind to which serial ports.
type Setup struct {
	Family   string      `yaml:"family"`
	Timeout  string      `yaml:"timeout,omitempty"`
	LogLevel string      `yaml:"log_level,omitempty"`
	Ports    []PortSetup `yaml:"ports"`
}

// PortSetup binds one logical port to a physical serial port.
type PortSetup struct {
	Index int    `yaml:"index"`
	Port  int    `yaml:"port"`
	Baud  uint32 `yaml:"baud,omitempty"`
}

// LoadSetup reads and validates a setup file.
func LoadSetup(path string) (*Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read setup: %w", err)
	}
	return ParseSetup(data)
}

// ParseSetup parses and validates YAML setup data.
func ParseSetup(data []byte) (*Setup, error) {
	var s Setup
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse setup: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Setup) validate() error {
	profile, err := ProfileByName(s.Family)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return fmt.Errorf("setup: timeout: %w", err)
		}
	}
	seen := make(map[int]bool)
	for _, p := range s.Ports {
		if p.Index < 0 || p.Index >= profile.MaxPort {
			return fmt.Errorf("setup: port index %d out of range 0..%d", p.Index, profile.MaxPort-1)
		}
		if seen[p.Index] {
			return fmt.Errorf("setup: duplicate port index %d", p.Index)
		}
		seen[p.Index] = true
	}
	return nil
}

// NewClient builds a client configured per the setup but does not open
// any ports yet, so callers can inject a logger or port opener first.
func (s *Setup) NewClient() (*Client, error) {
	profile, err := ProfileByName(s.Family)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	c := NewClient(profile)
	if s.Timeout != "" {
		timeout, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, fmt.Errorf("setup: timeout: %w", err)
		}
		c.SetTimeout(timeout)
	}
	if s.LogLevel != "" {
		logger := NewSimpleLogger(nil, LevelInfo, profile.Name)
		if err := logger.SetLevelFromString(s.LogLevel); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
		c.SetLogger(logger)
	}
	return c, nil
}

// OpenPorts binds every port entry of the setup on the client. The
// first failure aborts; already opened ports stay open.
func (s *Setup) OpenPorts(c *Client) error {
	for _, p := range s.Ports {
		if _, err := c.Open(p.Index, p.Port, p.Baud); err != nil {
			return err
		}
	}
	return nil
}
