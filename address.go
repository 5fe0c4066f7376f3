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

// PresenceState classifies a bus address after a scan.
type PresenceState byte

const (
	ModuleNotFound    PresenceState = 0 // no module found
	ModulePresent     PresenceState = 1 // module with a proper type found
	ModuleInvalidType PresenceState = 2 // module found but has an invalid type
)

func (s PresenceState) String() string {
	switch s {
	case ModuleNotFound:
		return "NotFound"
	case ModulePresent:
		return "Present"
	case ModuleInvalidType:
		return "InvalidType"
	default:
		return fmt.Sprintf("PresenceState(%d)", byte(s))
	}
}

type targetKind int

const (
	targetController targetKind = iota
	targetModule
	targetBroadcast
)

// Target is a logical bus destination: the base controller, a numbered
// module, or every device at once.
type Target struct {
	kind   targetKind
	module int
}

// Controller addresses the base controller itself.
func Controller() Target { return Target{kind: targetController} }

// Module addresses bus module n, 0..ModuleNum-1.
func Module(n int) Target { return Target{kind: targetModule, module: n} }

// Broadcast addresses every device on the bus; broadcast exchanges
// produce no response.
func Broadcast() Target { return Target{kind: targetBroadcast} }

func (t Target) String() string {
	switch t.kind {
	case targetModule:
		return fmt.Sprintf("module %d", t.module)
	case targetBroadcast:
		return "broadcast"
	default:
		return "controller"
	}
}

// wireAddress resolves the logical target to its wire address for the
// given device family. Module numbers outside 0..ModuleNum-1 are
// rejected without touching the channel.
func (t Target) wireAddress(p *DeviceProfile) (byte, error) {
	switch t.kind {
	case targetController:
		return p.AddrController, nil
	case targetBroadcast:
		return p.AddrBroadcast, nil
	case targetModule:
		if t.module < 0 || t.module >= p.ModuleNum {
			return 0, fmt.Errorf("module number %d out of range 0..%d", t.module, p.ModuleNum-1)
		}
		return p.AddrBase + byte(t.module), nil
	default:
		return 0, fmt.Errorf("invalid target")
	}
}

// GetModulePresence returns the cached presence classification for all
// module slots plus the base controller (index ModuleNum), along with
// the highest module slot the device reports and whether the cache
// holds a completed scan. The scan is fetched from the device on first
// use or after a rescan invalidated it.
func (ch *Channel) GetModulePresence() (valid bool, maxModule int, presence []PresenceState, err error) {
	ch.stateMu.Lock()
	cached := ch.presenceOK
	if cached {
		presence = append([]PresenceState(nil), ch.presence...)
		maxModule = ch.presenceMax
	}
	ch.stateMu.Unlock()
	if cached {
		return true, maxModule, presence, nil
	}

	payload, err := ch.Execute(Controller(), cmdGetModulePresence, nil)
	if err != nil {
		return false, 0, nil, err
	}
	// Payload: valid flag, max module, one presence byte per module
	// slot, then the base controller's own slot.
	if payload[0] > 1 {
		return false, 0, nil, ch.fail(ErrArgumentWrong,
			fmt.Errorf("presence valid flag %d", payload[0]))
	}
	valid = payload[0] == 1
	maxModule = int(payload[1])
	presence = make([]PresenceState, ch.profile.ModuleNum+1)
	for i := range presence {
		p := PresenceState(payload[2+i])
		if p > ModuleInvalidType {
			return false, 0, nil, ch.fail(ErrArgumentWrong,
				fmt.Errorf("presence value %d for slot %d", payload[2+i], i))
		}
		presence[i] = p
	}

	if valid {
		ch.stateMu.Lock()
		ch.presence = append([]PresenceState(nil), presence...)
		ch.presenceMax = maxModule
		ch.presenceOK = true
		ch.stateMu.Unlock()
	}
	return valid, maxModule, presence, nil
}

// UpdateModulePresence asks the device to refresh its presence flags
// and invalidates the local cache.
func (ch *Channel) UpdateModulePresence() error {
	if _, err := ch.Execute(Controller(), cmdUpdateModulePresence, nil); err != nil {
		return err
	}
	ch.invalidatePresence()
	return nil
}

// RescanModules re-probes the address pins of all modules. Any cached
// presence classification is invalidated.
func (ch *Channel) RescanModules() error {
	if _, err := ch.Execute(Controller(), cmdRescanModules, nil); err != nil {
		return err
	}
	ch.invalidatePresence()
	return nil
}

// RescanModule re-probes the address pins of one module and invalidates
// the cached classification.
func (ch *Channel) RescanModule(module int) error {
	if module < 0 || module >= ch.profile.ModuleNum {
		return ch.fail(ErrArgument, fmt.Errorf("module number %d out of range", module))
	}
	if _, err := ch.Execute(Controller(), cmdRescanModule, []byte{byte(module)}); err != nil {
		return err
	}
	ch.invalidatePresence()
	return nil
}

// RestartModule restarts the specified module.
func (ch *Channel) RestartModule(module int) error {
	if module < 0 || module >= ch.profile.ModuleNum {
		return ch.fail(ErrArgument, fmt.Errorf("module number %d out of range", module))
	}
	_, err := ch.Execute(Controller(), cmdRestartModule, []byte{byte(module)})
	return err
}

func (ch *Channel) invalidatePresence() {
	ch.stateMu.Lock()
	ch.presenceOK = false
	ch.presence = nil
	ch.stateMu.Unlock()
}

// GetScannedModuleState reports two independent flags: whether the
// scanned topology differs from the last saved one (ModuleMismatch) and
// whether a present module's electrical rating is incompatible with the
// base controller (RatingFailure).
func (ch *Channel) GetScannedModuleState() (moduleMismatch, ratingFailure bool, err error) {
	payload, err := ch.Execute(Controller(), cmdGetScannedModuleState, nil)
	if err != nil {
		return false, false, err
	}
	return payload[0] == 1, payload[1] == 1, nil
}

// SetScannedModuleState commits the current scan as the new saved
// topology baseline. This clears ModuleMismatch; RatingFailure is a
// hardware fact and is not re-evaluated.
func (ch *Channel) SetScannedModuleState() error {
	_, err := ch.Execute(Controller(), cmdSetScannedModuleState, nil)
	return err
}

// ScannedModuleParams holds the scanned and saved identity of one
// module slot.
type ScannedModuleParams struct {
	ScannedProductNo uint32
	SavedProductNo   uint32
	ScannedHwType    uint32
	SavedHwType      uint32
}

// GetScannedModuleParams returns the scanned and saved product number
// and hardware type of one module slot.
func (ch *Channel) GetScannedModuleParams(module int) (ScannedModuleParams, error) {
	var params ScannedModuleParams
	if module < 0 || module >= ch.profile.ModuleNum {
		return params, ch.fail(ErrArgument, fmt.Errorf("module number %d out of range", module))
	}
	payload, err := ch.Execute(Controller(), cmdGetScannedModuleParams, []byte{byte(module)})
	if err != nil {
		return params, err
	}
	params.ScannedProductNo = leUint32(payload[0:4])
	params.SavedProductNo = leUint32(payload[4:8])
	params.ScannedHwType = leUint32(payload[8:12])
	params.SavedHwType = leUint32(payload[12:16])
	return params, nil
}
