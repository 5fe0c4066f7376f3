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
	"sync"
	"sync/atomic"
	"time"
)

// StateSample is one snapshot of the controller state words.
type StateSample struct {
	Time        time.Time
	Status      uint16
	Device      uint16
	Voltage     uint16
	Temperature uint16
	Interlock   uint16
}

// OnSampleFunc receives state snapshots from a poller.
type OnSampleFunc func(StateSample)

// OnErrorFunc receives polling errors.
type OnErrorFunc func(error)

// StateStream dispatches samples to a callback asynchronously, so a
// slow consumer never stalls the polling transaction.
type StateStream struct {
	sampleCh chan StateSample
	stopCh   chan struct{}
	onSample atomic.Value
	onError  atomic.Value
}

// NewStateStream creates a stream with the given buffer size.
func NewStateStream(bufferSize int) *StateStream {
	return &StateStream{
		sampleCh: make(chan StateSample, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// SetOnSample sets the callback for state snapshots.
func (s *StateStream) SetOnSample(fn OnSampleFunc) {
	s.onSample.Store(fn)
}

// SetOnError sets the callback for polling errors.
func (s *StateStream) SetOnError(fn OnErrorFunc) {
	s.onError.Store(fn)
}

// Start launches the dispatch goroutine.
func (s *StateStream) Start() {
	go func() {
		for {
			select {
			case <-s.stopCh:
				return
			case sample, ok := <-s.sampleCh:
				if !ok {
					return
				}
				if cb := s.onSample.Load(); cb != nil {
					cb.(OnSampleFunc)(sample)
				}
			}
		}
	}()
}

// Push hands a sample to the stream unless it is stopped.
func (s *StateStream) Push(sample StateSample) {
	select {
	case s.sampleCh <- sample:
	case <-s.stopCh:
	}
}

func (s *StateStream) pushError(err error) {
	if cb := s.onError.Load(); cb != nil {
		cb.(OnErrorFunc)(err)
	}
}

// Stop signals the stream to stop dispatching.
func (s *StateStream) Stop() {
	close(s.stopCh)
}

// StatePoller periodically reads the controller state words of one
// channel and streams the snapshots. Polling shares the channel's
// transaction lock with regular callers, so manual operations interleave
// cleanly with the polling traffic.
type StatePoller struct {
	ch       *Channel
	stream   *StateStream
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStatePoller creates a poller for one channel.
func NewStatePoller(ch *Channel, interval time.Duration, bufferSize int) *StatePoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatePoller{
		ch:       ch,
		stream:   NewStateStream(bufferSize),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// SetOnSample sets the callback for state snapshots.
func (p *StatePoller) SetOnSample(fn OnSampleFunc) {
	p.stream.SetOnSample(fn)
}

// SetOnError sets the callback for polling errors.
func (p *StatePoller) SetOnError(fn OnErrorFunc) {
	p.stream.SetOnError(fn)
}

// Start launches the polling loop.
func (p *StatePoller) Start() {
	p.stream.Start()
	p.wg.Add(1)
	go p.poll()
}

// Stop stops the polling loop and the stream, waiting for the loop to
// exit.
func (p *StatePoller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.stream.Stop()
}

func (p *StatePoller) poll() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce reads all five state words. The first failure aborts the
// round; a half-sampled snapshot would pair words from different device
// states.
func (p *StatePoller) pollOnce() {
	sample := StateSample{Time: time.Now()}
	var err error
	if sample.Status, err = p.ch.GetState(); err != nil {
		p.stream.pushError(err)
		return
	}
	if sample.Device, err = p.ch.GetDeviceState(); err != nil {
		p.stream.pushError(err)
		return
	}
	if sample.Voltage, err = p.ch.GetVoltageState(); err != nil {
		p.stream.pushError(err)
		return
	}
	if sample.Temperature, err = p.ch.GetTemperatureState(); err != nil {
		p.stream.pushError(err)
		return
	}
	if sample.Interlock, err = p.ch.GetInterlockState(); err != nil {
		p.stream.pushError(err)
		return
	}
	p.stream.Push(sample)
}
