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

// Configuration slot management. The device's NVM holds MaxConfig named
// slots, each with a full register snapshot and two flags: Active (the
// slot currently loaded) and Valid (content is well-formed). The NVM is
// the single source of truth; the engine holds no local slot cache that
// could desynchronize from hardware across process restarts.

// checkSlot bounds-checks a slot number without touching the channel.
func (ch *Channel) checkSlot(slot int) error {
	if slot < 0 || slot >= ch.profile.MaxConfig {
		return ch.fail(ErrArgument,
			fmt.Errorf("configuration number %d out of range 0..%d", slot, ch.profile.MaxConfig-1))
	}
	return nil
}

// GetCurrentConfig reads the live register set of the controller.
func (ch *Channel) GetCurrentConfig() ([]uint32, error) {
	payload, err := ch.Execute(Controller(), cmdGetCurrentConfig, nil)
	if err != nil {
		return nil, err
	}
	regs := make([]uint32, ch.profile.MaxReg)
	for i := range regs {
		regs[i] = leUint32(payload[4*i : 4*i+4])
	}
	return regs, nil
}

// SetCurrentConfig writes the live register set of the controller. The
// device must not be producing output while its configuration changes.
func (ch *Channel) SetCurrentConfig(regs []uint32) error {
	if len(regs) != ch.profile.MaxReg {
		return ch.fail(ErrArgument,
			fmt.Errorf("configuration has %d registers, expected %d", len(regs), ch.profile.MaxReg))
	}
	if err := ch.ensureNotReady(); err != nil {
		return err
	}
	args := make([]byte, 4*len(regs))
	for i, r := range regs {
		copy(args[4*i:], putUint32(r))
	}
	_, err := ch.Execute(Controller(), cmdSetCurrentConfig, args)
	return err
}

// ResetCurrentConfig resets the live configuration to device defaults.
func (ch *Channel) ResetCurrentConfig() error {
	if err := ch.ensureNotReady(); err != nil {
		return err
	}
	_, err := ch.Execute(Controller(), cmdResetCurrentConfig, nil)
	return err
}

// SaveCurrentConfig stores the live register set into an NVM slot. The
// device marks the slot Valid.
func (ch *Channel) SaveCurrentConfig(slot int) error {
	if err := ch.checkSlot(slot); err != nil {
		return err
	}
	_, err := ch.Execute(Controller(), cmdSaveCurrentConfig, putUint16(uint16(slot)))
	return err
}

// LoadCurrentConfig loads an NVM slot into the live register set and
// marks the slot Active, clearing the previous Active flag. The device
// applies the configuration internally, so the call can fail with any
// transaction error in addition to ErrArgument.
//
// The hardware does not guarantee that a failed load leaves the live
// registers untouched. After any failed load the engine re-reads the
// live configuration to resynchronize instead of guessing.
func (ch *Channel) LoadCurrentConfig(slot int) error {
	if err := ch.checkSlot(slot); err != nil {
		return err
	}
	if err := ch.ensureNotReady(); err != nil {
		return err
	}
	if _, err := ch.Execute(Controller(), cmdLoadCurrentConfig, putUint16(uint16(slot))); err != nil {
		_, _ = ch.GetCurrentConfig()
		return err
	}
	return nil
}

// GetConfigFlags returns the Active and Valid flags of a slot.
func (ch *Channel) GetConfigFlags(slot int) (active, valid bool, err error) {
	if err := ch.checkSlot(slot); err != nil {
		return false, false, err
	}
	payload, err := ch.Execute(Controller(), cmdGetConfigFlags, putUint16(uint16(slot)))
	if err != nil {
		return false, false, err
	}
	return payload[0] == 1, payload[1] == 1, nil
}

// SetConfigFlags writes the Active and Valid flags of a slot. At most
// one slot may be Active; the device clears the previous Active flag.
func (ch *Channel) SetConfigFlags(slot int, active, valid bool) error {
	if err := ch.checkSlot(slot); err != nil {
		return err
	}
	args := append(putUint16(uint16(slot)), boolByte(active), boolByte(valid))
	_, err := ch.Execute(Controller(), cmdSetConfigFlags, args)
	return err
}

// GetConfigName returns the display name of a slot.
func (ch *Channel) GetConfigName(slot int) (string, error) {
	if err := ch.checkSlot(slot); err != nil {
		return "", err
	}
	payload, err := ch.Execute(Controller(), cmdGetConfigName, putUint16(uint16(slot)))
	if err != nil {
		return "", err
	}
	return cString(payload), nil
}

// SetConfigName writes the display name of a slot. The name must fit
// the profile's fixed capacity including the terminator; an oversized
// name is rejected, never truncated silently.
func (ch *Channel) SetConfigName(slot int, name string) error {
	if err := ch.checkSlot(slot); err != nil {
		return err
	}
	if len(name) >= ch.profile.ConfigNameSize {
		return ch.fail(ErrArgument,
			fmt.Errorf("configuration name of %d bytes exceeds capacity %d",
				len(name), ch.profile.ConfigNameSize-1))
	}
	args := make([]byte, 2+ch.profile.ConfigNameSize)
	copy(args, putUint16(uint16(slot)))
	copy(args[2:], name) // remainder stays zero, terminating the string
	_, err := ch.Execute(Controller(), cmdSetConfigName, args)
	return err
}

// GetConfigData reads the register snapshot stored in a slot.
func (ch *Channel) GetConfigData(slot int) ([]uint32, error) {
	if err := ch.checkSlot(slot); err != nil {
		return nil, err
	}
	payload, err := ch.Execute(Controller(), cmdGetConfigData, putUint16(uint16(slot)))
	if err != nil {
		return nil, err
	}
	regs := make([]uint32, ch.profile.MaxReg)
	for i := range regs {
		regs[i] = leUint32(payload[4*i : 4*i+4])
	}
	return regs, nil
}

// SetConfigData writes a register snapshot directly into a slot.
func (ch *Channel) SetConfigData(slot int, regs []uint32) error {
	if err := ch.checkSlot(slot); err != nil {
		return err
	}
	if len(regs) != ch.profile.MaxReg {
		return ch.fail(ErrArgument,
			fmt.Errorf("configuration has %d registers, expected %d", len(regs), ch.profile.MaxReg))
	}
	args := make([]byte, 2+4*len(regs))
	copy(args, putUint16(uint16(slot)))
	for i, r := range regs {
		copy(args[2+4*i:], putUint32(r))
	}
	_, err := ch.Execute(Controller(), cmdSetConfigData, args)
	return err
}

// GetConfigList returns the Active and Valid flags of every slot. The
// flags travel bit-packed, one bank per flag.
func (ch *Channel) GetConfigList() (active, valid []bool, err error) {
	payload, err := ch.Execute(Controller(), cmdGetConfigList, nil)
	if err != nil {
		return nil, nil, err
	}
	n := ch.profile.MaxConfig
	bankLen := (n + 7) / 8
	active = unpackBits(payload[:bankLen], n)
	valid = unpackBits(payload[bankLen:], n)
	return active, valid, nil
}

func unpackBits(bank []byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		if bank[i/8]&(1<<(i%8)) != 0 {
			out[i] = true
		}
	}
	return out
}

// ensureNotReady brings the device into a state where its configuration
// may change. A controller reporting a general error cannot accept
// configuration changes at all; one with enabled PSUs is asked to
// disable them first.
func (ch *Channel) ensureNotReady() error {
	state, err := ch.GetDeviceState()
	if err != nil {
		return err
	}
	if state&DsPSUEnb == 0 {
		return nil
	}
	status, err := ch.GetState()
	if err != nil {
		return err
	}
	if status&StError != 0 {
		return ch.fail(ErrNotReady, fmt.Errorf("device status 0x%04X", status))
	}
	enabled, err := ch.EnablePSU(false)
	if err != nil {
		return err
	}
	if enabled {
		return ch.fail(ErrReady, fmt.Errorf("PSUs still enabled"))
	}
	return nil
}
