package cgc

// State words are reported verbatim from the wire; the engine does not
// interpret them. The constants below name the bits for callers.

// Controller status values reported by GetState.
const (
	StOn       uint16 = 0      // PSUs are on
	StOverload uint16 = 1      // HV PSUs overloaded
	StStandby  uint16 = 2      // HV PSUs are stand-by
	StError    uint16 = 0x8000 // general error

	StErrModule   = StError + 1 // PSU-module error
	StErrVSup     = StError + 2 // supply-voltage error
	StErrTempLow  = StError + 3 // low-temperature error
	StErrTempHigh = StError + 4 // overheating error
	StErrIlock    = StError + 5 // interlock error
	StErrPSUDis   = StError + 6 // error due to disabled PSUs
	StErrHVPSU    = StError + 7 // HV did not reach nominal value, PSUs off
)

// Device-state bits reported by GetDeviceState.
const (
	DsPSUEnb     uint16 = 1 << 0x0 // PSUs enabled
	DsVoltFail   uint16 = 1 << 0x8 // supply voltages failure
	DsHVFail     uint16 = 1 << 0x9 // high voltages failure
	DsFanFail    uint16 = 1 << 0xA // fan failure
	DsIlockFail  uint16 = 1 << 0xB // interlock failure
	DsModuleFail uint16 = 1 << 0xC // module configuration failure
	DsRatingFail uint16 = 1 << 0xD // module rating failure
	DsHVStop     uint16 = 1 << 0xE // HV PSUs were turned off
)

// Voltage-state bits reported by GetVoltageState.
const (
	Vs3V3OK  uint16 = 1 << 0x0
	Vs5V0OK  uint16 = 1 << 0x1
	Vs12VOK  uint16 = 1 << 0x2
	VsLineOn uint16 = 1 << 0x3
	Vs12VpOK uint16 = 1 << 0x4
	Vs12VnOK uint16 = 1 << 0x5
	VsHVpOK  uint16 = 1 << 0x6
	VsHVnOK  uint16 = 1 << 0x7
	VsHVpNZ  uint16 = 1 << 0x8
	VsHVnNZ  uint16 = 1 << 0x9
	VsICLOn  uint16 = 1 << 0xF

	VsSupplyOK = Vs3V3OK | Vs5V0OK | Vs12VOK
	VsAnalogOK = Vs12VpOK | Vs12VnOK
	VsHVOK     = VsHVpOK | VsHVnOK
	VsHVNZ     = VsHVpNZ | VsHVnNZ
)

// Temperature-state bits reported by GetTemperatureState.
const (
	TsHVpPSUHigh uint16 = 1 << 0x0
	TsHVnPSUHigh uint16 = 1 << 0x1
	TsAVPSUHigh  uint16 = 1 << 0x2
	TsADCHigh    uint16 = 1 << 0x3
	TsCPUHigh    uint16 = 1 << 0x4
	TsHVpPSULow  uint16 = 1 << 0x8
	TsHVnPSULow  uint16 = 1 << 0x9
	TsAVPSULow   uint16 = 1 << 0xA
	TsADCLow     uint16 = 1 << 0xB
	TsCPULow     uint16 = 1 << 0xC
)

// Interlock-state bits reported by GetInterlockState. Only the enable
// and invert bits are writable through SetInterlockState.
const (
	SiIlockFrontEnb  uint16 = 1 << 0x0
	SiIlockRearEnb   uint16 = 1 << 0x1
	SiIlockFrontInv  uint16 = 1 << 0x2
	SiIlockRearInv   uint16 = 1 << 0x3
	SiIlockFront     uint16 = 1 << 0x8
	SiIlockRear      uint16 = 1 << 0x9
	SiIlockFrontLast uint16 = 1 << 0xA
	SiIlockRearLast  uint16 = 1 << 0xB
	SiIlockEnb       uint16 = 1 << 0xF

	SiIlockEnbMask uint16 = SiIlockFrontEnb | SiIlockRearEnb
	// SetInterlockState accepts only these bits.
	SiIlockControlMask = SiIlockEnbMask | SiIlockFrontInv | SiIlockRearInv
)

// Module-state bits reported by GetModuleState.
const (
	MsOut1Lo uint16 = 1 << 0x0
	MsOut2Lo uint16 = 1 << 0x1
	MsOut3Lo uint16 = 1 << 0x2
	MsOut4Lo uint16 = 1 << 0x3
	MsOut1Hi uint16 = 1 << 0x4
	MsOut2Hi uint16 = 1 << 0x5
	MsOut3Hi uint16 = 1 << 0x6
	MsOut4Hi uint16 = 1 << 0x7
	MsActive uint16 = 1 << 0xF // outputs may be nonzero
)
