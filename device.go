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
	"encoding/binary"
	"fmt"
	"math"
)

// Device information and state accessors. All of them address either
// the base controller or one module; the state words are reported
// verbatim from the wire, interpretation is a caller concern.

// GetFwVersion returns the firmware version of the target.
func (ch *Channel) GetFwVersion(target Target) (uint16, error) {
	payload, err := ch.Execute(target, cmdGetFwVersion, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// GetFwDate returns the firmware build date string. The wire field is
// a fixed-capacity zero-terminated buffer; the capacity never exceeds
// the profile's DateStringSize.
func (ch *Channel) GetFwDate(target Target) (string, error) {
	payload, err := ch.Execute(target, cmdGetFwDate, nil)
	if err != nil {
		return "", err
	}
	return cString(payload), nil
}

// GetProductID returns the product identification string.
func (ch *Channel) GetProductID(target Target) (string, error) {
	payload, err := ch.Execute(target, cmdGetProductID, nil)
	if err != nil {
		return "", err
	}
	return cString(payload), nil
}

// GetProductNo returns the product number of the target.
func (ch *Channel) GetProductNo(target Target) (uint32, error) {
	payload, err := ch.Execute(target, cmdGetProductNo, nil)
	if err != nil {
		return 0, err
	}
	return leUint32(payload), nil
}

// GetManufDate returns the manufacturing year and calendar week.
func (ch *Channel) GetManufDate(target Target) (year, week uint16, err error) {
	payload, err := ch.Execute(target, cmdGetManufDate, nil)
	if err != nil {
		return 0, 0, err
	}
	return leUint16(payload[0:2]), leUint16(payload[2:4]), nil
}

// GetDevType returns the device type word of the target.
func (ch *Channel) GetDevType(target Target) (uint16, error) {
	payload, err := ch.Execute(target, cmdGetDevType, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// CheckDevType reads the device type and verifies it against the value
// expected for the profile. A mismatch is reported as ErrNotConnected:
// something answered, but not the instrument this profile describes.
func (ch *Channel) CheckDevType(target Target) error {
	devType, err := ch.GetDevType(target)
	if err != nil {
		return err
	}
	expected := ch.profile.DeviceType
	if target.kind == targetModule {
		expected = ch.profile.ModuleType
	}
	if devType != expected {
		return ch.fail(ErrNotConnected,
			fmt.Errorf("device type 0x%04X, expected 0x%04X", devType, expected))
	}
	return nil
}

// GetHwType returns the hardware type of the target.
func (ch *Channel) GetHwType(target Target) (uint32, error) {
	payload, err := ch.Execute(target, cmdGetHwType, nil)
	if err != nil {
		return 0, err
	}
	return leUint32(payload), nil
}

// GetHwVersion returns the hardware version of the target.
func (ch *Channel) GetHwVersion(target Target) (uint16, error) {
	payload, err := ch.Execute(target, cmdGetHwVersion, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// Restart restarts the target controller or module.
func (ch *Channel) Restart(target Target) error {
	_, err := ch.Execute(target, cmdRestart, nil)
	return err
}

// GetState returns the controller status word.
func (ch *Channel) GetState() (uint16, error) {
	payload, err := ch.Execute(Controller(), cmdGetState, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// GetDeviceState returns the device-state word.
func (ch *Channel) GetDeviceState() (uint16, error) {
	payload, err := ch.Execute(Controller(), cmdGetDeviceState, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// GetVoltageState returns the voltage-state word.
func (ch *Channel) GetVoltageState() (uint16, error) {
	payload, err := ch.Execute(Controller(), cmdGetVoltageState, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// GetTemperatureState returns the temperature-state word.
func (ch *Channel) GetTemperatureState() (uint16, error) {
	payload, err := ch.Execute(Controller(), cmdGetTemperatureState, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// GetInterlockState returns the interlock-state word.
func (ch *Channel) GetInterlockState() (uint16, error) {
	payload, err := ch.Execute(Controller(), cmdGetInterlockState, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// SetInterlockState writes the interlock control bits. Only the enable
// and invert bits are writable.
func (ch *Channel) SetInterlockState(control byte) error {
	if uint16(control)&^SiIlockControlMask != 0 {
		return ch.fail(ErrArgument,
			fmt.Errorf("interlock control 0x%02X has non-writable bits", control))
	}
	_, err := ch.Execute(Controller(), cmdSetInterlockState, []byte{control})
	return err
}

// EnablePSU sets the PSU-enable bit and returns the bit value the
// device reports back.
func (ch *Channel) EnablePSU(enable bool) (bool, error) {
	payload, err := ch.Execute(Controller(), cmdEnablePSU, []byte{boolByte(enable)})
	if err != nil {
		return false, err
	}
	return payload[0] == 1, nil
}

// GetModuleState returns the state word of one module.
func (ch *Channel) GetModuleState(module int) (uint16, error) {
	payload, err := ch.Execute(Module(module), cmdGetModuleState, nil)
	if err != nil {
		return 0, err
	}
	return leUint16(payload), nil
}

// ModuleChannelNum is the number of output channels per module.
const ModuleChannelNum = 4

// GetModuleOutputVoltage reads the set voltage of one module output.
func (ch *Channel) GetModuleOutputVoltage(module, channel int) (float64, error) {
	if channel < 0 || channel >= ModuleChannelNum {
		return 0, ch.fail(ErrArgument, fmt.Errorf("output channel %d out of range", channel))
	}
	payload, err := ch.Execute(Module(module), cmdGetOutputVoltage, []byte{byte(channel)})
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(payload)), nil
}

// SetModuleOutputVoltage sets the voltage of one module output.
func (ch *Channel) SetModuleOutputVoltage(module, channel int, voltage float64) error {
	if channel < 0 || channel >= ModuleChannelNum {
		return ch.fail(ErrArgument, fmt.Errorf("output channel %d out of range", channel))
	}
	args := make([]byte, 9)
	args[0] = byte(channel)
	binary.LittleEndian.PutUint64(args[1:], math.Float64bits(voltage))
	_, err := ch.Execute(Module(module), cmdSetOutputVoltage, args)
	return err
}
