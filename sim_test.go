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
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"
)

// simDevice models one instrument behind a serial port. Its NVM and
// live state live in simState, which survives port close/reopen the way
// real hardware does. Failure injection flags let tests hit specific
// stages of a transaction.
type simState struct {
	mu sync.Mutex

	profile *DeviceProfile

	regs     []uint32   // live register set
	slotData [][]uint32 // NVM register snapshots
	slotName []string
	active   []bool
	valid    []bool

	status      uint16 // controller status word
	deviceState uint16
	presence    []byte // presence classification per slot + controller
	maxModule   byte
	baudRate    uint32
	voltages    map[int]float64 // module*ModuleChannelNum+channel

	// failure injection
	wrongEcho       bool // corrupt the command echo of the next response
	corruptTerm     bool // corrupt the terminator of the next response
	dropResponse    bool // swallow the next response entirely
	failLoad        bool // refuse LoadCurrentConfig, scrambling the live regs
	stickyPSU       bool // refuse to disable the PSUs
	invalidPresence bool // report an out-of-domain presence valid flag

	ops []byte // command codes processed, in order
}

func newSimState(profile *DeviceProfile) *simState {
	s := &simState{
		profile:  profile,
		regs:     make([]uint32, profile.MaxReg),
		slotData: make([][]uint32, profile.MaxConfig),
		slotName: make([]string, profile.MaxConfig),
		active:   make([]bool, profile.MaxConfig),
		valid:    make([]bool, profile.MaxConfig),
		presence: make([]byte, profile.ModuleNum+1),
		voltages: make(map[int]float64),
		baudRate: 9600,
	}
	s.presence[profile.ModuleNum] = byte(ModulePresent) // the controller itself
	return s
}

// opCount returns how many times the given command code was processed.
func (s *simState) opCount(code byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.ops {
		if c == code {
			n++
		}
	}
	return n
}

func (s *simState) lastOp() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ops) == 0 {
		return 0
	}
	return s.ops[len(s.ops)-1]
}

// simPort is one open connection to the simulated device. Close makes
// the port unusable; the device state stays behind for the next open.
type simPort struct {
	state  *simState
	mu     sync.Mutex
	in     []byte
	out    []byte
	closed bool
}

func (s *simState) open() *simPort {
	return &simPort{state: s}
}

// opener returns a PortOpener that always connects to this device.
func (s *simState) opener() PortOpener {
	return func(portNumber, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
		return s.open(), nil
	}
}

func (p *simPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.in = append(p.in, data...)
	p.process()
	return len(data), nil
}

// Read never waits: the simulator produces its response synchronously
// inside Write, so an empty buffer means the response was dropped or
// already consumed. Failing fast keeps purge loops deterministic.
func (p *simPort) Read(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.EOF
	}
	if len(p.out) > 0 {
		n := copy(data, p.out)
		p.out = p.out[n:]
		return n, nil
	}
	return 0, context.DeadlineExceeded
}

func (p *simPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// process consumes complete request frames from the input buffer. Runs
// with p.mu held.
func (p *simPort) process() {
	st := p.state
	for {
		if len(p.in) < 2 {
			return
		}
		addr, code := p.in[0], p.in[1]
		cmd, ok := st.profile.Command(code)
		if !ok {
			// Unknown code, swallow a minimal frame to stay in sync.
			p.in = p.in[2:]
			continue
		}
		frameLen := 2 + cmd.ArgLen + 1
		if len(p.in) < frameLen {
			return
		}
		args := append([]byte(nil), p.in[2:2+cmd.ArgLen]...)
		term := p.in[frameLen-1]
		p.in = p.in[frameLen:]
		if term != FrameTerm {
			continue
		}

		st.mu.Lock()
		st.ops = append(st.ops, code)
		payload := st.handle(addr, cmd, args)
		drop := st.dropResponse
		wrongEcho := st.wrongEcho
		corruptTerm := st.corruptTerm
		st.dropResponse, st.wrongEcho, st.corruptTerm = false, false, false
		st.mu.Unlock()

		if addr == st.profile.AddrBroadcast || drop {
			continue
		}
		echo := code
		if wrongEcho {
			echo++
		}
		termOut := FrameTerm
		if corruptTerm {
			termOut = 0x00
		}
		p.out = append(p.out, addr, echo)
		p.out = append(p.out, payload...)
		p.out = append(p.out, termOut)
	}
}

// handle runs one command against the device state and returns the
// reply payload. Runs with st.mu held. Commands the tests never
// interpret reply with zeros.
func (st *simState) handle(addr byte, cmd Command, args []byte) []byte {
	payload := make([]byte, cmd.ReplyLen)
	p := st.profile

	switch cmd.Code {
	case cmdGetFwVersion:
		binary.LittleEndian.PutUint16(payload, 0x0123)
	case cmdGetDevType:
		devType := p.DeviceType
		if addr >= p.AddrBase && addr != p.AddrBroadcast {
			devType = p.ModuleType
		}
		binary.LittleEndian.PutUint16(payload, devType)
	case cmdGetState:
		binary.LittleEndian.PutUint16(payload, st.status)
	case cmdGetDeviceState:
		binary.LittleEndian.PutUint16(payload, st.deviceState)
	case cmdEnablePSU:
		if args[0] == 1 {
			st.deviceState |= DsPSUEnb
		} else if !st.stickyPSU {
			st.deviceState &^= DsPSUEnb
		}
		payload[0] = boolByte(st.deviceState&DsPSUEnb != 0)
	case cmdDevicePurge, cmdBufferState:
		payload[0] = 1 // buffers empty
	case cmdSetBaudRate:
		st.baudRate = binary.LittleEndian.Uint32(args)
		binary.LittleEndian.PutUint32(payload, st.baudRate)
	case cmdGetModulePresence:
		payload[0] = 1
		if st.invalidPresence {
			payload[0] = 2
		}
		payload[1] = st.maxModule
		copy(payload[2:], st.presence)
	case cmdGetOutputVoltage:
		module := int(addr - p.AddrBase)
		v := st.voltages[module*ModuleChannelNum+int(args[0])]
		binary.LittleEndian.PutUint64(payload, math.Float64bits(v))
	case cmdSetOutputVoltage:
		module := int(addr - p.AddrBase)
		st.voltages[module*ModuleChannelNum+int(args[0])] =
			math.Float64frombits(binary.LittleEndian.Uint64(args[1:]))
	case cmdGetCurrentConfig:
		for i, r := range st.regs {
			binary.LittleEndian.PutUint32(payload[4*i:], r)
		}
	case cmdSetCurrentConfig:
		for i := range st.regs {
			st.regs[i] = binary.LittleEndian.Uint32(args[4*i:])
		}
	case cmdResetCurrentConfig:
		for i := range st.regs {
			st.regs[i] = 0
		}
	case cmdSaveCurrentConfig:
		slot := int(binary.LittleEndian.Uint16(args))
		st.slotData[slot] = append([]uint32(nil), st.regs...)
		st.valid[slot] = true
	case cmdLoadCurrentConfig:
		slot := int(binary.LittleEndian.Uint16(args))
		if st.failLoad || !st.valid[slot] {
			// A failed load leaves the live registers half written.
			st.failLoad = false
			for i := range st.regs {
				st.regs[i] = 0xDEAD
			}
			st.wrongEcho = true
			break
		}
		copy(st.regs, st.slotData[slot])
		for i := range st.active {
			st.active[i] = false
		}
		st.active[slot] = true
	case cmdGetConfigFlags:
		slot := int(binary.LittleEndian.Uint16(args))
		payload[0] = boolByte(st.active[slot])
		payload[1] = boolByte(st.valid[slot])
	case cmdSetConfigFlags:
		slot := int(binary.LittleEndian.Uint16(args))
		if args[2] == 1 {
			for i := range st.active {
				st.active[i] = false
			}
		}
		st.active[slot] = args[2] == 1
		st.valid[slot] = args[3] == 1
	case cmdGetConfigList:
		bankLen := (p.MaxConfig + 7) / 8
		for i := 0; i < p.MaxConfig; i++ {
			if st.active[i] {
				payload[i/8] |= 1 << (i % 8)
			}
			if st.valid[i] {
				payload[bankLen+i/8] |= 1 << (i % 8)
			}
		}
	case cmdGetConfigName:
		slot := int(binary.LittleEndian.Uint16(args))
		copy(payload, st.slotName[slot])
	case cmdSetConfigName:
		slot := int(binary.LittleEndian.Uint16(args))
		st.slotName[slot] = cString(args[2:])
	case cmdGetConfigData:
		slot := int(binary.LittleEndian.Uint16(args))
		for i, r := range st.slotData[slot] {
			binary.LittleEndian.PutUint32(payload[4*i:], r)
		}
	case cmdSetConfigData:
		slot := int(binary.LittleEndian.Uint16(args))
		regs := make([]uint32, p.MaxReg)
		for i := range regs {
			regs[i] = binary.LittleEndian.Uint32(args[2+4*i:])
		}
		st.slotData[slot] = regs
		st.valid[slot] = true
	}
	return payload
}
