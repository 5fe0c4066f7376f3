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
	"os"
	"path/filepath"
	"testing"
	"time"
)

const setupYAML = `
family: HVPSU2D
timeout: 250ms
log_level: warning
ports:
  - index: 0
    port: 3
    baud: 115200
  - index: 4
    port: 7
`

func TestParseSetup(t *testing.T) {
	s, err := ParseSetup([]byte(setupYAML))
	assertNoError(t, err)

	if s.Family != "HVPSU2D" {
		t.Errorf("family %q", s.Family)
	}
	if len(s.Ports) != 2 {
		t.Fatalf("got %d ports", len(s.Ports))
	}
	if s.Ports[0].Index != 0 || s.Ports[0].Port != 3 || s.Ports[0].Baud != 115200 {
		t.Errorf("port 0 parsed as %+v", s.Ports[0])
	}
	if s.Ports[1].Baud != 0 {
		t.Errorf("missing baud parsed as %d", s.Ports[1].Baud)
	}
}

func TestParseSetupInvalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"unknown family", "family: HVXXX\nports: []\n"},
		{"bad timeout", "family: HVPSU2D\ntimeout: soon\nports: []\n"},
		{"index out of range", "family: HVPSU2D\nports:\n  - index: 16\n    port: 1\n"},
		{"duplicate index", "family: HVPSU2D\nports:\n  - index: 2\n    port: 1\n  - index: 2\n    port: 3\n"},
		{"not yaml", "family: [unterminated\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSetup([]byte(tc.yaml)); err == nil {
				t.Errorf("invalid setup accepted")
			}
		})
	}
}

func TestLoadSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	assertNoError(t, os.WriteFile(path, []byte(setupYAML), 0o644))

	s, err := LoadSetup(path)
	assertNoError(t, err)
	if s.Family != "HVPSU2D" {
		t.Errorf("family %q", s.Family)
	}

	if _, err := LoadSetup(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file accepted")
	}
}

func TestSetupOpenPorts(t *testing.T) {
	s, err := ParseSetup([]byte(setupYAML))
	assertNoError(t, err)

	c, err := s.NewClient()
	assertNoError(t, err)
	if c.Profile() != HVPSU2D {
		t.Fatalf("client built for %v", c.Profile().Name)
	}
	if c.timeout != 250*time.Millisecond {
		t.Errorf("client timeout %v", c.timeout)
	}

	sim := newSimState(HVPSU2D)
	c.SetPortOpener(sim.opener())
	assertNoError(t, s.OpenPorts(c))

	ch := c.Channel(0)
	if ch == nil || !ch.IsOpen() || ch.BaudRate() != 115200 {
		t.Fatalf("channel 0 not opened per setup")
	}
	if ch := c.Channel(4); ch == nil || ch.PortNumber() != 7 {
		t.Fatalf("channel 4 not opened per setup")
	}
	if c.Channel(1) != nil {
		t.Errorf("unlisted channel was opened")
	}
}
