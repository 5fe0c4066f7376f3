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

// ErrChannelBusy is returned by TryExecute when another transaction is
// in flight on the same channel.
var ErrChannelBusy = fmt.Errorf("cgc: channel busy, transaction in flight")

// Execute drives one command/response exchange on the channel: send the
// command frame, await the response under a bounded timeout, validate
// it and return the reply payload. Transactions on one channel are
// serialized; the engine never interleaves bytes from two exchanges.
//
// Every distinguishable failure point maps to its own code. A
// successful transaction clears the channel's latched interface state;
// a failed one records the specific kind for later retrieval.
func (ch *Channel) Execute(target Target, code byte, args []byte) ([]byte, error) {
	ch.txMu.Lock()
	defer ch.txMu.Unlock()
	return ch.executeLocked(target, code, args)
}

// TryExecute behaves like Execute but fails fast with ErrChannelBusy
// instead of queueing behind an in-flight transaction.
func (ch *Channel) TryExecute(target Target, code byte, args []byte) ([]byte, error) {
	if !ch.txMu.TryLock() {
		return nil, ErrChannelBusy
	}
	defer ch.txMu.Unlock()
	return ch.executeLocked(target, code, args)
}

func (ch *Channel) executeLocked(target Target, code byte, args []byte) ([]byte, error) {
	if !ch.open || ch.transport == nil {
		return nil, ch.fail(ErrNotConnected, nil)
	}

	cmd, ok := ch.profile.Command(code)
	if !ok {
		return nil, ch.fail(ErrArgument, fmt.Errorf("unknown command 0x%02X", code))
	}
	address, err := target.wireAddress(ch.profile)
	if err != nil {
		return nil, ch.fail(ErrArgument, err)
	}
	if len(args) != cmd.ArgLen {
		return nil, ch.fail(ErrArgument,
			fmt.Errorf("command %s: argument length %d, expected %d", cmd.Name, len(args), cmd.ArgLen))
	}
	// Broadcast frames produce no response, so a command whose reply the
	// caller needs cannot be broadcast.
	if address == ch.profile.AddrBroadcast && cmd.ReplyLen > 0 {
		return nil, ch.fail(ErrArgument,
			fmt.Errorf("command %s: broadcast returns no reply", cmd.Name))
	}

	// Send stages: command header, data payload, terminator. Each stage
	// has its own failure code, mirroring the wire contract.
	if err := ch.transport.WriteRaw([]byte{address, cmd.Code}); err != nil {
		return nil, ch.failIO(ErrCommandSend, err)
	}
	if cmd.ArgLen > 0 {
		if err := ch.transport.WriteRaw(args); err != nil {
			return nil, ch.failIO(ErrDataSend, err)
		}
	}
	if err := ch.transport.WriteRaw([]byte{FrameTerm}); err != nil {
		return nil, ch.failIO(ErrTermSend, err)
	}

	// Broadcast frames produce no response.
	if address == ch.profile.AddrBroadcast {
		ch.clearState()
		return nil, nil
	}

	// Receive stages: command echo, data payload, terminator. A timeout
	// abandons the read and purges the channel so the next transaction
	// starts synchronized; the hardware has no abort primitive.
	hdr, err := ch.transport.ReadFull(2)
	if err != nil {
		ch.resync()
		return nil, ch.failIO(ErrCommandReceive, err)
	}
	if st := ch.packager.validateHeader([2]byte{hdr[0], hdr[1]}, address, cmd); st != NoErr {
		ch.resync()
		return nil, ch.fail(st, fmt.Errorf("command %s: echo % X", cmd.Name, hdr))
	}

	var payload []byte
	if cmd.ReplyLen > 0 {
		payload, err = ch.transport.ReadFull(cmd.ReplyLen)
		if err != nil {
			ch.resync()
			return nil, ch.failIO(ErrDataReceive, err)
		}
		if st := checkDomain(cmd.Domain, payload); st != NoErr {
			ch.resync()
			return nil, ch.fail(st, fmt.Errorf("command %s: payload out of range", cmd.Name))
		}
	}

	term, err := ch.transport.ReadByte()
	if err != nil {
		ch.resync()
		return nil, ch.failIO(ErrTermReceive, err)
	}
	if term != FrameTerm {
		ch.resync()
		return nil, ch.fail(ErrTermReceive,
			fmt.Errorf("command %s: terminator 0x%02X", cmd.Name, term))
	}

	ch.clearState()
	return payload, nil
}

// fail latches a software-interface error and builds the returned error.
func (ch *Channel) fail(code Code, cause error) error {
	ch.latch(code, cause)
	ch.logf("error: cgc: port %d: %s", ch.index, code.Message())
	return newComError(code, ch.index, cause)
}

// failIO latches an I/O-stage error in all three state slots.
func (ch *Channel) failIO(code Code, cause error) error {
	ch.latchIO(code, cause)
	ch.logf("error: cgc: port %d: %s: %v", ch.index, code.Message(), cause)
	return newComError(code, ch.index, cause)
}

// resync abandons the in-flight exchange and drains the receive path.
// Best effort: a failed purge leaves the next transaction to report its
// own receive error.
func (ch *Channel) resync() {
	if ch.transport != nil {
		_ = ch.transport.Purge()
	}
}
