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
	"errors"
	"fmt"
)

// Code is the numeric result of an interface call. Zero means success,
// negative values identify the failure stage. The values match the codes
// reported by the instrument firmware, so they are stable API.
type Code int

const (
	NoErr             Code = 0
	ErrPortRange      Code = -1   // port number out of range
	ErrOpen           Code = -2   // error opening the port
	ErrClose          Code = -3   // error closing the port
	ErrPurge          Code = -4   // error purging the port
	ErrControl        Code = -5   // error setting the port control lines
	ErrStatus         Code = -6   // error reading the port status lines
	ErrCommandSend    Code = -7   // error sending command
	ErrDataSend       Code = -8   // error sending data
	ErrTermSend       Code = -9   // error sending termination character
	ErrCommandReceive Code = -10  // error receiving command
	ErrDataReceive    Code = -11  // error receiving data
	ErrTermReceive    Code = -12  // error receiving termination character
	ErrCommandWrong   Code = -13  // wrong command received
	ErrArgumentWrong  Code = -14  // wrong argument received
	ErrArgument       Code = -15  // wrong argument passed to the function
	ErrRate           Code = -16  // error setting the baud rate
	ErrNotConnected   Code = -100 // device not connected
	ErrNotReady       Code = -101 // device not ready
	ErrReady          Code = -102 // device state could not be set to not ready
)

var codeMessages = map[Code]string{
	NoErr:             "No error occurred",
	ErrPortRange:      "Port number out of range",
	ErrOpen:           "Error opening the port",
	ErrClose:          "Error closing the port",
	ErrPurge:          "Error purging the port",
	ErrControl:        "Error setting the port control lines",
	ErrStatus:         "Error reading the port status lines",
	ErrCommandSend:    "Error sending command",
	ErrDataSend:       "Error sending data",
	ErrTermSend:       "Error sending termination character",
	ErrCommandReceive: "Error receiving command",
	ErrDataReceive:    "Error receiving data",
	ErrTermReceive:    "Error receiving termination character",
	ErrCommandWrong:   "Wrong command received",
	ErrArgumentWrong:  "Wrong argument received",
	ErrArgument:       "Wrong argument passed to the function",
	ErrRate:           "Error setting the baud rate",
	ErrNotConnected:   "Device not connected",
	ErrNotReady:       "Device not ready",
	ErrReady:          "Device state could not be set to not ready",
}

// Message returns the human-readable message for a result code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "Unknown error code"
}

func (c Code) String() string {
	return fmt.Sprintf("%d (%s)", int(c), c.Message())
}

// ComError is the error type returned by every operation that touches a
// channel. It carries the numeric interface code alongside the wrapped
// cause, so callers can switch on the code while diagnostics keep the
// full chain.
type ComError struct {
	Code Code
	Port int    // logical port number the error occurred on
	Err  error  // underlying OS or transport error, may be nil
}

func (e *ComError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cgc: port %d: %s: %v", e.Port, e.Code.Message(), e.Err)
	}
	return fmt.Sprintf("cgc: port %d: %s", e.Port, e.Code.Message())
}

func (e *ComError) Unwrap() error {
	return e.Err
}

func newComError(code Code, port int, err error) *ComError {
	return &ComError{Code: code, Port: port, Err: err}
}

// CodeOf extracts the interface code from an error chain. A nil error
// maps to NoErr; an error without a ComError in its chain maps to
// ErrStatus as a generic fault indication.
func CodeOf(err error) Code {
	if err == nil {
		return NoErr
	}
	var ce *ComError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrStatus
}

// IOErrorMessage returns the message for a latched serial-port interface
// state obtained from Channel.GetIOState.
func IOErrorMessage(state Code) string {
	return state.Message()
}

// CommErrorMessage returns the message for a latched communication-port
// error obtained from Channel.GetCommError. Comm errors are OS level, so
// only the generic classes the engine distinguishes are named.
func CommErrorMessage(commError uint32) string {
	switch commError {
	case 0:
		return "No communication-port error"
	case commErrTimeout:
		return "Communication-port timeout"
	case commErrIO:
		return "Communication-port input/output fault"
	case commErrClosed:
		return "Communication port closed"
	default:
		return "Unknown communication-port error"
	}
}

// Communication-port error classes latched alongside the interface state.
const (
	commErrTimeout uint32 = 1
	commErrIO      uint32 = 2
	commErrClosed  uint32 = 3
)
