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
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

//
const commandLength = 4

//
var helloAdapter = []byte("hlda")
var helloDaemon = []byte("hlod")

/*
	conduit is the serial link to a physical acquisition adapter. The
	adapter talks in fixed four byte commands; replies from the daemon
	are free-form and sized per command.
*/
type conduit struct {
	port io.ReadWriteCloser
}

//
func newConduit(port string) (*conduit, error) {
	ret := &conduit{}
	var err error
	ret.port, err = openPort(port)
	return ret, err
}

//
func openPort(p string) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        p,
		BaudRate:        1000000,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

//
func (c *conduit) close() error {
	return c.port.Close()
}

/*
	syncOnHello scans the byte stream for the adapter hello, then drains
	stale commands until the hellos stop coming live, and finally answers
	with the daemon hello. Only after this exchange are command frame
	boundaries trustworthy.
*/
func (c *conduit) syncOnHello() error {

	log.Info("syncing with adapter")
	hello := make([]byte, commandLength)

	for !bytes.Equal(hello, helloAdapter) {
		shiftLeft(hello)
		if err := c.receive(hello[len(hello)-1:]); err != nil {
			return err
		}
	}

	for { // find last live hello from the adapter
		start := time.Now()
		cmd, err := c.receiveCommand()
		if err != nil {
			return err
		}
		if cmd.cmd() == CmdHello &&
			time.Now().Sub(start) > 500*time.Millisecond {
			break
		}
		log.Debugf("discarding command: %v", cmd.data)
	}

	if err := c.send(helloDaemon); err != nil {
		return err
	}

	log.Info("synced with adapter")
	return nil
}

//
func (c *conduit) receive(data []byte) error {
	_, err := io.ReadFull(c.port, data)
	return err
}

//
func (c *conduit) send(data []byte) error {
	_, err := c.port.Write(data)
	return err
}

//
func (c *conduit) receiveCommand() (*command, error) {
	data := make([]byte, commandLength)
	if err := c.receive(data); err != nil {
		return nil, err
	}
	return newCommand(data), nil
}

//
func shiftLeft(buf []byte) {
	if len(buf) > 1 {
		for ix := 0; ix < len(buf)-1; ix++ {
			buf[ix] = buf[ix+1]
		}
	}
}
