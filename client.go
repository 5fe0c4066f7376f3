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
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	serial "github.com/hootrhino/goserial"
)

// PortOpener opens the physical serial port behind a channel. The
// default opener binds real hardware through goserial; tests and
// simulators substitute their own.
type PortOpener func(portNumber, baud int, timeout time.Duration) (io.ReadWriteCloser, error)

// Client manages the channels of one device family. Each channel index
// binds at most one physical serial port; the client keeps the table,
// the channels do the talking.
type Client struct {
	profile *DeviceProfile

	tableMu  sync.Mutex
	channels []*Channel

	logger  io.Writer
	opener  PortOpener
	timeout time.Duration
}

// NewClient creates a client for one device family.
func NewClient(profile *DeviceProfile) *Client {
	return &Client{
		profile:  profile,
		channels: make([]*Channel, profile.MaxPort),
		timeout:  DefaultTimeout,
	}
}

// Profile returns the device family the client speaks to.
func (c *Client) Profile() *DeviceProfile { return c.profile }

// SetLogger directs diagnostic output to w. A nil writer disables
// logging.
func (c *Client) SetLogger(w io.Writer) {
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	c.logger = w
}

// SetPortOpener replaces the serial-port factory, mainly for tests and
// device simulators.
func (c *Client) SetPortOpener(opener PortOpener) {
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	c.opener = opener
}

// SetTimeout sets the per-step communication timeout applied to ports
// opened afterwards.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.timeout = timeout
}

// Open binds channel index to physical port portNumber at the given
// rate and returns the channel. An index outside 0..MaxPort-1 fails
// with ErrPortRange. Re-opening a bound index releases the previous
// binding first, so a channel never leaks its serial resource.
func (c *Client) Open(index, portNumber int, baud uint32) (*Channel, error) {
	if index < 0 || index >= c.profile.MaxPort {
		return nil, newComError(ErrPortRange, index,
			fmt.Errorf("port number %d out of range 0..%d", index, c.profile.MaxPort-1))
	}
	if baud == 0 {
		baud = supportedRates[0]
	}

	c.tableMu.Lock()
	ch := c.channels[index]
	if ch == nil {
		ch = &Channel{
			index:    index,
			profile:  c.profile,
			packager: NewFramePackager(c.profile),
			client:   c,
		}
		c.channels[index] = ch
	}
	timeout := c.timeout
	c.tableMu.Unlock()

	ch.txMu.Lock()
	defer ch.txMu.Unlock()
	if ch.open {
		if err := ch.closeLocked(); err != nil {
			return nil, err
		}
	}

	port, err := c.openPort(portNumber, int(baud), timeout)
	if err != nil {
		ch.latchIO(ErrOpen, err)
		c.logf("error: cgc: port %d: %s: %v", index, ErrOpen.Message(), err)
		return nil, newComError(ErrOpen, index, err)
	}
	ch.portNumber = portNumber
	ch.transport = NewTransport(port, timeout)
	ch.baudRate = baud
	ch.open = true
	ch.clearState()
	c.logf("info: cgc: port %d: opened COM%d at %d Bd", index, portNumber, baud)
	return ch, nil
}

// Channel returns the channel bound at index, or nil when the index was
// never opened or is out of range.
func (c *Client) Channel(index int) *Channel {
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	if index < 0 || index >= len(c.channels) {
		return nil
	}
	return c.channels[index]
}

// Close releases the channel at index. Closing an unbound or already
// closed index succeeds.
func (c *Client) Close(index int) error {
	if index < 0 || index >= c.profile.MaxPort {
		return newComError(ErrPortRange, index,
			fmt.Errorf("port number %d out of range 0..%d", index, c.profile.MaxPort-1))
	}
	ch := c.Channel(index)
	if ch == nil {
		return nil
	}
	return ch.Close()
}

// CloseAll releases every bound channel, reporting the first failure
// but attempting all of them.
func (c *Client) CloseAll() error {
	c.tableMu.Lock()
	channels := append([]*Channel(nil), c.channels...)
	c.tableMu.Unlock()

	var first error
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openPort opens the physical port through the configured opener.
func (c *Client) openPort(portNumber, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	c.tableMu.Lock()
	opener := c.opener
	c.tableMu.Unlock()
	if opener == nil {
		opener = openSerialPort
	}
	return opener(portNumber, baud, timeout)
}

// openSerialPort is the hardware opener. The instruments enumerate as
// USB CDC serial ports; 8N1 framing is fixed by their UARTs.
func openSerialPort(portNumber, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	return serial.Open(&serial.Config{
		Address:  serialPortName(portNumber),
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	})
}

func serialPortName(portNumber int) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("COM%d", portNumber)
	}
	return fmt.Sprintf("/dev/ttyUSB%d", portNumber)
}

func (c *Client) logf(format string, args ...any) {
	c.tableMu.Lock()
	w := c.logger
	c.tableMu.Unlock()
	if w != nil {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
