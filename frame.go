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

import "fmt"

// FrameTerm terminates every command and response frame.
const FrameTerm byte = 0x0D

// maxFrameSize bounds any frame the engine will build or accept. The
// largest exchanges are the register dumps (2 header bytes + 2 + 4*MaxReg
// payload + terminator); one kilobyte covers every profile with margin.
const maxFrameSize = 1024

// FramePackager builds and validates the fixed-layout frames of the CGC
// serial protocol: address, command code, arguments whose width is
// implied by the command, and a trailing terminator. There is no length
// prefix and no checksum; framing integrity rests on the fixed widths
// and the terminator.
type FramePackager struct {
	profile *DeviceProfile
}

// NewFramePackager creates a packager bound to one device profile.
func NewFramePackager(profile *DeviceProfile) *FramePackager {
	return &FramePackager{profile: profile}
}

// Pack builds a command frame for the given wire address. The argument
// width must match the command's table entry exactly.
func (p *FramePackager) Pack(address byte, cmd Command, args []byte) ([]byte, error) {
	if len(args) != cmd.ArgLen {
		return nil, fmt.Errorf("command %s: argument length %d, expected %d",
			cmd.Name, len(args), cmd.ArgLen)
	}
	frameLen := 2 + len(args) + 1
	if frameLen > maxFrameSize {
		return nil, fmt.Errorf("command %s: frame length %d exceeds maximum %d",
			cmd.Name, frameLen, maxFrameSize)
	}
	frame := make([]byte, 0, frameLen)
	frame = append(frame, address, cmd.Code)
	frame = append(frame, args...)
	frame = append(frame, FrameTerm)
	return frame, nil
}

// Unpack validates a complete response frame against the in-flight
// command and returns its payload. Validation order is fixed: address,
// command echo, payload domain, terminator. Each check maps to its own
// error kind so callers can tell the failures apart.
func (p *FramePackager) Unpack(frame []byte, expectedAddress byte, cmd Command) ([]byte, Code) {
	want := 2 + cmd.ReplyLen + 1
	if len(frame) < want {
		return nil, ErrDataReceive
	}
	if frame[0] != expectedAddress && frame[0] != p.profile.AddrBroadcast {
		return nil, ErrCommandWrong
	}
	if frame[1] != cmd.Code {
		return nil, ErrCommandWrong
	}
	payload := frame[2 : 2+cmd.ReplyLen]
	if code := checkDomain(cmd.Domain, payload); code != NoErr {
		return nil, code
	}
	if frame[2+cmd.ReplyLen] != FrameTerm {
		return nil, ErrTermReceive
	}
	out := make([]byte, cmd.ReplyLen)
	copy(out, payload)
	return out, NoErr
}

// checkDomain verifies that the payload bytes lie in the command's legal
// range. Reported as ErrArgumentWrong: the device answered, but with an
// argument outside the wire contract.
func checkDomain(domain replyDomain, payload []byte) Code {
	switch domain {
	case domainBool:
		for _, b := range payload {
			if b > 1 {
				return ErrArgumentWrong
			}
		}
	case domainPresence:
		for _, b := range payload {
			if b > byte(ModuleInvalidType) {
				return ErrArgumentWrong
			}
		}
	}
	return NoErr
}

// validateHeader checks the first two response bytes against the
// in-flight request. Split out from Unpack because the transaction
// engine reads the response in stages.
func (p *FramePackager) validateHeader(hdr [2]byte, expectedAddress byte, cmd Command) Code {
	if hdr[0] != expectedAddress && hdr[0] != p.profile.AddrBroadcast {
		return ErrCommandWrong
	}
	if hdr[1] != cmd.Code {
		return ErrCommandWrong
	}
	return NoErr
}
