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

import "testing"

func TestDeviceInfo(t *testing.T) {
	_, ch, _ := newSimChannel(t, HVPSU2D)

	version, err := ch.GetFwVersion(Controller())
	assertNoError(t, err)
	if version != 0x0123 {
		t.Errorf("firmware version 0x%04X", version)
	}

	devType, err := ch.GetDevType(Controller())
	assertNoError(t, err)
	if devType != HVPSU2D.DeviceType {
		t.Errorf("device type 0x%04X, expected 0x%04X", devType, HVPSU2D.DeviceType)
	}

	devType, err = ch.GetDevType(Module(1))
	assertNoError(t, err)
	if devType != HVPSU2D.ModuleType {
		t.Errorf("module type 0x%04X, expected 0x%04X", devType, HVPSU2D.ModuleType)
	}

	// The simulator reports zeroed identity fields; the exchanges must
	// still complete with the profile's fixed widths.
	if _, err := ch.GetFwDate(Controller()); err != nil {
		t.Errorf("GetFwDate: %v", err)
	}
	if _, err := ch.GetProductID(Controller()); err != nil {
		t.Errorf("GetProductID: %v", err)
	}
	if _, err := ch.GetProductNo(Controller()); err != nil {
		t.Errorf("GetProductNo: %v", err)
	}
	if _, _, err := ch.GetManufDate(Controller()); err != nil {
		t.Errorf("GetManufDate: %v", err)
	}
	if _, err := ch.GetHwType(Controller()); err != nil {
		t.Errorf("GetHwType: %v", err)
	}
	if _, err := ch.GetHwVersion(Module(0)); err != nil {
		t.Errorf("GetHwVersion: %v", err)
	}
}

func TestStateWords(t *testing.T) {
	_, ch, sim := newSimChannel(t, HVPSU2D)

	sim.mu.Lock()
	sim.status = StStandby
	sim.deviceState = DsHVStop
	sim.mu.Unlock()

	status, err := ch.GetState()
	assertNoError(t, err)
	if status != StStandby {
		t.Errorf("status 0x%04X", status)
	}
	state, err := ch.GetDeviceState()
	assertNoError(t, err)
	if state != DsHVStop {
		t.Errorf("device state 0x%04X", state)
	}
	if _, err := ch.GetVoltageState(); err != nil {
		t.Errorf("GetVoltageState: %v", err)
	}
	if _, err := ch.GetTemperatureState(); err != nil {
		t.Errorf("GetTemperatureState: %v", err)
	}
	if _, err := ch.GetInterlockState(); err != nil {
		t.Errorf("GetInterlockState: %v", err)
	}
	if _, err := ch.GetModuleState(0); err != nil {
		t.Errorf("GetModuleState: %v", err)
	}
}

func TestSetInterlockState(t *testing.T) {
	_, ch, sim := newSimChannel(t, HVPSU2D)

	assertNoError(t, ch.SetInterlockState(byte(SiIlockFrontEnb|SiIlockRearInv)))

	// Bits outside the control mask are rejected locally.
	before := sim.opCount(cmdSetInterlockState)
	assertCode(t, ErrArgument, ch.SetInterlockState(0x10))
	if sim.opCount(cmdSetInterlockState) != before {
		t.Errorf("rejected control word reached the device")
	}
}

func TestEnablePSU(t *testing.T) {
	_, ch, _ := newSimChannel(t, HVPSU2D)

	enabled, err := ch.EnablePSU(true)
	assertNoError(t, err)
	if !enabled {
		t.Errorf("device did not report PSUs enabled")
	}
	enabled, err = ch.EnablePSU(false)
	assertNoError(t, err)
	if enabled {
		t.Errorf("device did not report PSUs disabled")
	}
}

func TestModuleOutputVoltage(t *testing.T) {
	_, ch, _ := newSimChannel(t, HVPSU2D)

	assertNoError(t, ch.SetModuleOutputVoltage(1, 2, 1250.5))
	v, err := ch.GetModuleOutputVoltage(1, 2)
	assertNoError(t, err)
	if v != 1250.5 {
		t.Errorf("voltage %v, expected 1250.5", v)
	}

	// Other outputs stay untouched.
	v, err = ch.GetModuleOutputVoltage(1, 3)
	assertNoError(t, err)
	if v != 0 {
		t.Errorf("untouched output reads %v", v)
	}

	assertCode(t, ErrArgument, ch.SetModuleOutputVoltage(1, ModuleChannelNum, 1.0))
	if _, err := ch.GetModuleOutputVoltage(1, -1); CodeOf(err) != ErrArgument {
		t.Errorf("negative output channel accepted: %v", err)
	}
}

func TestRestart(t *testing.T) {
	_, ch, sim := newSimChannel(t, HVPSU2D)

	assertNoError(t, ch.Restart(Controller()))
	assertNoError(t, ch.Restart(Module(0)))
	if sim.opCount(cmdRestart) != 2 {
		t.Errorf("restart processed %d times", sim.opCount(cmdRestart))
	}
}
