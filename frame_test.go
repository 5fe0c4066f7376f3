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
	"bytes"
	"testing"
)

func TestFramePack(t *testing.T) {
	p := NewFramePackager(HVPSU2D)
	cmd := HVPSU2D.mustCommand(cmdEnablePSU)

	frame, err := p.Pack(HVPSU2D.AddrController, cmd, []byte{1})
	assertNoError(t, err)
	expected := []byte{0x00, cmdEnablePSU, 0x01, FrameTerm}
	if !bytes.Equal(frame, expected) {
		t.Errorf("Pack returned incorrect frame: got % X, expected % X", frame, expected)
	}
}

func TestFramePackArgLength(t *testing.T) {
	p := NewFramePackager(HVPSU2D)
	cmd := HVPSU2D.mustCommand(cmdEnablePSU)

	if _, err := p.Pack(HVPSU2D.AddrController, cmd, nil); err == nil {
		t.Errorf("Pack accepted wrong argument length")
	}
	if _, err := p.Pack(HVPSU2D.AddrController, cmd, []byte{1, 2}); err == nil {
		t.Errorf("Pack accepted wrong argument length")
	}
}

func TestFrameUnpack(t *testing.T) {
	p := NewFramePackager(HVPSU2D)
	cmd := HVPSU2D.mustCommand(cmdGetFwVersion)

	frame := []byte{0x00, cmdGetFwVersion, 0x23, 0x01, FrameTerm}
	payload, code := p.Unpack(frame, 0x00, cmd)
	if code != NoErr {
		t.Fatalf("Unpack failed with code %v", code)
	}
	if leUint16(payload) != 0x0123 {
		t.Errorf("Unpack returned payload % X", payload)
	}
}

// Each validation stage of a response maps to its own error kind, and
// the stages are checked in a fixed order.
func TestFrameUnpackErrorKinds(t *testing.T) {
	p := NewFramePackager(HVPSU2D)
	version := HVPSU2D.mustCommand(cmdGetFwVersion)
	enable := HVPSU2D.mustCommand(cmdEnablePSU)

	testCases := []struct {
		name  string
		frame []byte
		cmd   Command
		code  Code
	}{
		{
			name:  "truncated frame",
			frame: []byte{0x00, cmdGetFwVersion, 0x23},
			cmd:   version,
			code:  ErrDataReceive,
		},
		{
			name:  "wrong address",
			frame: []byte{0x42, cmdGetFwVersion, 0x23, 0x01, FrameTerm},
			cmd:   version,
			code:  ErrCommandWrong,
		},
		{
			name:  "wrong command echo",
			frame: []byte{0x00, cmdGetFwDate, 0x23, 0x01, FrameTerm},
			cmd:   version,
			code:  ErrCommandWrong,
		},
		{
			name:  "payload outside domain",
			frame: []byte{0x00, cmdEnablePSU, 0x02, FrameTerm},
			cmd:   enable,
			code:  ErrArgumentWrong,
		},
		{
			name:  "corrupted terminator",
			frame: []byte{0x00, cmdEnablePSU, 0x01, 0x00},
			cmd:   enable,
			code:  ErrTermReceive,
		},
		{
			// A frame broken in several ways reports the earliest stage.
			name:  "wrong echo and corrupted terminator",
			frame: []byte{0x00, cmdGetFwDate, 0x01, 0x00},
			cmd:   enable,
			code:  ErrCommandWrong,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, code := p.Unpack(tc.frame, 0x00, tc.cmd); code != tc.code {
				t.Errorf("Unpack returned code %v, expected %v", code, tc.code)
			}
		})
	}
}

func TestCheckDomainPresence(t *testing.T) {
	if code := checkDomain(domainPresence, []byte{0, 1, 2}); code != NoErr {
		t.Errorf("legal presence payload rejected with %v", code)
	}
	if code := checkDomain(domainPresence, []byte{0, 3}); code != ErrArgumentWrong {
		t.Errorf("illegal presence payload returned %v", code)
	}
}
