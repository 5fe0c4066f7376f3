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

// Command codes shared by all device families. Argument and reply widths
// are fixed per code; device-dependent widths (register dumps, config
// names, presence tables) are resolved when a profile builds its table.
const (
	cmdGetFwVersion  byte = 0x01
	cmdGetFwDate     byte = 0x02
	cmdGetProductID  byte = 0x03
	cmdGetProductNo  byte = 0x04
	cmdGetManufDate  byte = 0x05
	cmdGetDevType    byte = 0x06
	cmdGetHwType     byte = 0x07
	cmdGetHwVersion  byte = 0x08
	cmdRestart       byte = 0x0A
	cmdDevicePurge   byte = 0x0B
	cmdBufferState   byte = 0x0C
	cmdSetBaudRate   byte = 0x0E

	cmdGetState            byte = 0x10
	cmdGetDeviceState      byte = 0x11
	cmdGetVoltageState     byte = 0x12
	cmdGetTemperatureState byte = 0x13
	cmdGetInterlockState   byte = 0x14
	cmdSetInterlockState   byte = 0x15
	cmdEnablePSU           byte = 0x16
	cmdGetModuleState      byte = 0x17
	cmdGetOutputVoltage    byte = 0x18
	cmdSetOutputVoltage    byte = 0x19

	cmdGetModulePresence      byte = 0x20
	cmdUpdateModulePresence   byte = 0x21
	cmdRescanModules          byte = 0x22
	cmdRescanModule           byte = 0x23
	cmdRestartModule          byte = 0x24
	cmdGetScannedModuleState  byte = 0x25
	cmdSetScannedModuleState  byte = 0x26
	cmdGetScannedModuleParams byte = 0x27

	cmdGetCurrentConfig   byte = 0x30
	cmdSetCurrentConfig   byte = 0x31
	cmdGetConfigList      byte = 0x32
	cmdSaveCurrentConfig  byte = 0x33
	cmdLoadCurrentConfig  byte = 0x34
	cmdGetConfigFlags     byte = 0x35
	cmdSetConfigFlags     byte = 0x36
	cmdGetConfigName      byte = 0x37
	cmdSetConfigName      byte = 0x38
	cmdGetConfigData      byte = 0x39
	cmdSetConfigData      byte = 0x3A
	cmdResetCurrentConfig byte = 0x3B
)

// Reply payload domains the codec can check without knowing the command
// semantics. Anything stricter is a caller concern.
type replyDomain int

const (
	domainAny      replyDomain = iota
	domainBool                 // every payload byte must be exactly 0 or 1
	domainPresence             // every payload byte must be a PresenceState
)

// Command describes one request/response exchange: its wire code, the
// fixed argument width the device expects and the fixed reply width it
// sends back. Widths are known before the frame is built, which keeps
// the total frame length bounded.
type Command struct {
	Code     byte
	Name     string
	ArgLen   int
	ReplyLen int
	Domain   replyDomain
}

// DeviceProfile parameterizes the transaction engine for one instrument
// family. The engine itself is family-agnostic; everything specific to
// AMPR-12, HVPSU2D or HVAMX4ED lives here.
type DeviceProfile struct {
	Name           string
	MaxPort        int    // number of logical ports (concurrent channels)
	ModuleNum      int    // number of bus module slots
	AddrBase       byte   // wire address of module 0
	AddrController byte   // wire address of the base controller
	AddrBroadcast  byte   // broadcast wire address, no response expected
	MaxReg         int    // registers per configuration snapshot
	MaxConfig      int    // number of NVM configuration slots
	ConfigNameSize int    // capacity of a slot name, including terminator
	DateStringSize int    // capacity of the firmware date string
	ProductIDSize  int    // capacity of the product identification string
	DeviceType     uint16 // expected controller device type word
	ModuleType     uint16 // expected module device type word

	commands map[byte]Command
}

// Built-in profiles for the supported instrument families.
var (
	// AMPR12 is the multi-module HV power-supply chassis: a single
	// implicit port and up to 12 AMP-4D modules on the internal bus.
	AMPR12 = newProfile(DeviceProfile{
		Name:           "AMPR-12",
		MaxPort:        1,
		ModuleNum:      12,
		MaxReg:         93,
		MaxConfig:      500,
		ConfigNameSize: 89,
		DeviceType:     0xA3D8,
		ModuleType:     0x07E6,
	})

	// HVPSU2D is the dual-PSU controller.
	HVPSU2D = newProfile(DeviceProfile{
		Name:           "HVPSU2D",
		MaxPort:        16,
		ModuleNum:      2,
		MaxReg:         60,
		MaxConfig:      168,
		ConfigNameSize: 75,
		DeviceType:     0xB2C1,
		ModuleType:     0x09A4,
	})

	// HVAMX4ED is the pulse/switch-timing controller.
	HVAMX4ED = newProfile(DeviceProfile{
		Name:           "HVAMX4ED",
		MaxPort:        16,
		ModuleNum:      4,
		MaxReg:         48,
		MaxConfig:      126,
		ConfigNameSize: 52,
		DeviceType:     0xC47F,
		ModuleType:     0x0B12,
	})
)

// ProfileByName resolves a profile from its family name as used in setup
// files. The match is exact.
func ProfileByName(name string) (*DeviceProfile, error) {
	switch name {
	case AMPR12.Name:
		return AMPR12, nil
	case HVPSU2D.Name:
		return HVPSU2D, nil
	case HVAMX4ED.Name:
		return HVAMX4ED, nil
	}
	return nil, fmt.Errorf("cgc: unknown device profile %q", name)
}

func newProfile(p DeviceProfile) *DeviceProfile {
	if p.AddrBase == 0 {
		p.AddrBase = 0x80
	}
	if p.AddrBroadcast == 0 {
		p.AddrBroadcast = 0xFF
	}
	if p.DateStringSize == 0 {
		p.DateStringSize = 12
	}
	if p.ProductIDSize == 0 {
		p.ProductIDSize = 81
	}
	p.commands = buildCommandTable(&p)
	return &p
}

// buildCommandTable derives the per-family command table. Config and
// presence exchanges depend on MaxReg, MaxConfig, ConfigNameSize and
// ModuleNum, everything else is fixed width.
func buildCommandTable(p *DeviceProfile) map[byte]Command {
	regBytes := 4 * p.MaxReg
	listBytes := 2 * ((p.MaxConfig + 7) / 8)

	cmds := []Command{
		{cmdGetFwVersion, "GetFwVersion", 0, 2, domainAny},
		{cmdGetFwDate, "GetFwDate", 0, p.DateStringSize, domainAny},
		{cmdGetProductID, "GetProductID", 0, p.ProductIDSize, domainAny},
		{cmdGetProductNo, "GetProductNo", 0, 4, domainAny},
		{cmdGetManufDate, "GetManufDate", 0, 4, domainAny},
		{cmdGetDevType, "GetDevType", 0, 2, domainAny},
		{cmdGetHwType, "GetHwType", 0, 4, domainAny},
		{cmdGetHwVersion, "GetHwVersion", 0, 2, domainAny},
		{cmdRestart, "Restart", 0, 0, domainAny},
		{cmdDevicePurge, "DevicePurge", 0, 1, domainBool},
		{cmdBufferState, "GetBufferState", 0, 1, domainBool},
		{cmdSetBaudRate, "SetBaudRate", 4, 4, domainAny},

		{cmdGetState, "GetState", 0, 2, domainAny},
		{cmdGetDeviceState, "GetDeviceState", 0, 2, domainAny},
		{cmdGetVoltageState, "GetVoltageState", 0, 2, domainAny},
		{cmdGetTemperatureState, "GetTemperatureState", 0, 2, domainAny},
		{cmdGetInterlockState, "GetInterlockState", 0, 2, domainAny},
		{cmdSetInterlockState, "SetInterlockState", 1, 0, domainAny},
		{cmdEnablePSU, "EnablePSU", 1, 1, domainBool},
		{cmdGetModuleState, "GetModuleState", 0, 2, domainAny},
		{cmdGetOutputVoltage, "GetOutputVoltage", 1, 8, domainAny},
		{cmdSetOutputVoltage, "SetOutputVoltage", 9, 0, domainAny},

		{cmdGetModulePresence, "GetModulePresence", 0, 2 + p.ModuleNum + 1, domainAny},
		{cmdUpdateModulePresence, "UpdateModulePresence", 0, 0, domainAny},
		{cmdRescanModules, "RescanModules", 0, 0, domainAny},
		{cmdRescanModule, "RescanModule", 1, 0, domainAny},
		{cmdRestartModule, "RestartModule", 1, 0, domainAny},
		{cmdGetScannedModuleState, "GetScannedModuleState", 0, 2, domainBool},
		{cmdSetScannedModuleState, "SetScannedModuleState", 0, 0, domainAny},
		{cmdGetScannedModuleParams, "GetScannedModuleParams", 1, 16, domainAny},

		{cmdGetCurrentConfig, "GetCurrentConfig", 0, regBytes, domainAny},
		{cmdSetCurrentConfig, "SetCurrentConfig", regBytes, 0, domainAny},
		{cmdGetConfigList, "GetConfigList", 0, listBytes, domainAny},
		{cmdSaveCurrentConfig, "SaveCurrentConfig", 2, 0, domainAny},
		{cmdLoadCurrentConfig, "LoadCurrentConfig", 2, 0, domainAny},
		{cmdGetConfigFlags, "GetConfigFlags", 2, 2, domainBool},
		{cmdSetConfigFlags, "SetConfigFlags", 4, 0, domainAny},
		{cmdGetConfigName, "GetConfigName", 2, p.ConfigNameSize, domainAny},
		{cmdSetConfigName, "SetConfigName", 2 + p.ConfigNameSize, 0, domainAny},
		{cmdGetConfigData, "GetConfigData", 2, regBytes, domainAny},
		{cmdSetConfigData, "SetConfigData", 2 + regBytes, 0, domainAny},
		{cmdResetCurrentConfig, "ResetCurrentConfig", 0, 0, domainAny},
	}

	table := make(map[byte]Command, len(cmds))
	for _, c := range cmds {
		table[c.Code] = c
	}
	return table
}

// Command looks up the command descriptor for a wire code.
func (p *DeviceProfile) Command(code byte) (Command, bool) {
	c, ok := p.commands[code]
	return c, ok
}

// mustCommand is used internally where the code is a package constant.
func (p *DeviceProfile) mustCommand(code byte) Command {
	c, ok := p.commands[code]
	if !ok {
		panic(fmt.Sprintf("cgc: profile %s has no command 0x%02X", p.Name, code))
	}
	return c
}
