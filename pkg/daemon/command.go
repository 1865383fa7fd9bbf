/*
   Driveback - floppy & QIC-117 tape preservation controller core
   Copyright (c) 2025, the Driveback authors

   This file is part of Driveback.

   Driveback is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Driveback is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Driveback. If not, see <http://www.gnu.org/licenses/>.
*/

package daemon

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/retroflux/driveback/pkg/sim"
)

// adapter protocol commands; each is a four byte frame
const CmdHello = 'h'    // hello (receive from adapter)
const CmdPing = 'P'     // ping/pong
const CmdRead = 'r'     // read register: instance, register
const CmdWrite = 'w'    // write register: instance, register, value
const CmdAdvance = 'a'  // advance the core: milliseconds, 16 bit big endian
const CmdLines = 'l'    // sample the shared cable lines
const CmdSetLines = 's' // drive the drive-side input lines: mask
const CmdFlux = 'f'     // feed flux intervals: count, then that many bytes
const CmdDebug = 'd'    // debug message: length, then that many bytes
const CmdShutdown = 'q' // adapter going away, drop back to syncing

// CmdSetLines mask bits
const lineWriteProtect = 0x01

// reply status bytes
const replyOK = 0x00
const replyError = 0xff

var ping = []byte("Ping")
var pong = []byte("Pong")

//
func newCommand(data []byte) *command {
	return &command{data: data}
}

//
type command struct {
	data []byte
}

//
func (c *command) dispatch(d *Daemon) error {

	switch c.cmd() {

	case CmdHello:
		d.synced = false
		return nil

	case CmdPing:
		if bytes.Equal(c.data, ping) {
			log.Debug("ping from adapter")
			return d.conduit.send(pong)
		}
		return nil

	case CmdRead:
		return c.readRegister(d)

	case CmdWrite:
		return c.writeRegister(d)

	case CmdAdvance:
		return c.advance(d)

	case CmdLines:
		return c.lines(d)

	case CmdSetLines:
		d.core.SetWriteProtect(c.arg(0)&lineWriteProtect != 0)
		return d.conduit.send([]byte{replyOK})

	case CmdFlux:
		return c.flux(d)

	case CmdDebug:
		return c.debug(d)

	case CmdShutdown:
		log.Info("adapter announced shutdown")
		d.synced = false
		return nil
	}

	return fmt.Errorf("unknown command: %v", c.data)
}

//
func (c *command) cmd() byte {
	return c.data[0]
}

//
func (c *command) arg(ix int) byte {
	if 0 <= ix && ix < len(c.data)-1 {
		return c.data[ix+1]
	}
	return 0
}

// instance maps the instance byte to an engine name
func (c *command) instance() string {
	if c.arg(0) == 'B' {
		return "B"
	}
	return "A"
}

//
func (c *command) readRegister(d *Daemon) error {

	val, err := d.core.ReadRegister(c.instance(), int(c.arg(1)))
	if err != nil {
		log.Debugf("register read rejected: %v", err)
		return d.conduit.send([]byte{replyError, 0})
	}
	return d.conduit.send([]byte{replyOK, val})
}

//
func (c *command) writeRegister(d *Daemon) error {

	err := d.core.WriteRegister(c.instance(), int(c.arg(1)), c.arg(2))
	if err != nil {
		log.Debugf("register write rejected: %v", err)
		return d.conduit.send([]byte{replyError})
	}
	return d.conduit.send([]byte{replyOK})
}

//
func (c *command) advance(d *Daemon) error {

	ms := int(c.arg(0))<<8 | int(c.arg(1))
	d.core.Advance(sim.Milliseconds(ms))
	return d.conduit.send([]byte{replyOK})
}

// lines replies with the same composite the status register A read
// produces, for adapters that poll the cable without a register access
func (c *command) lines(d *Daemon) error {

	val, err := d.core.ReadRegister(c.instance(), 0)
	if err != nil {
		return d.conduit.send([]byte{replyError, 0})
	}
	return d.conduit.send([]byte{replyOK, val})
}

// flux receives a run of captured transition intervals and queues them
// for replay into the read chain
func (c *command) flux(d *Daemon) error {

	length := int(c.arg(0))
	if length == 0 {
		return d.conduit.send([]byte{replyOK})
	}

	intervals := make([]byte, length)
	if err := d.conduit.receive(intervals); err != nil {
		return err
	}

	d.core.FeedFlux(intervals)
	return d.conduit.send([]byte{replyOK})
}

//
func (c *command) debug(d *Daemon) error {

	length := int(c.arg(0))
	if length == 0 {
		return nil
	}

	msg := make([]byte, length)
	if err := d.conduit.receive(msg); err != nil {
		return err
	}

	log.Infof("adapter: %s", string(msg))
	return nil
}
