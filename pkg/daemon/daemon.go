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
	"errors"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/retroflux/driveback/pkg/qic"
	"github.com/retroflux/driveback/pkg/signal"
	"github.com/retroflux/driveback/pkg/sim"
)

//
var ErrDaemonStopped = errors.New("daemon stopped")

// chunk of real time simulated per free-running loop pass
const loopbackSlice = 5

/*
	Daemon runs the controller core and its link to the outside. With a
	serial port configured it serves the adapter protocol, re-syncing on
	any error; with an empty port it free-runs the core against the
	synthetic media, which is the loopback mode.
*/
type Daemon struct {
	core    *Core
	conduit *conduit
	port    string
	synced  bool
	stopped int32
}

//
func NewDaemon(port string, core *Core) *Daemon {
	return &Daemon{core: core, port: port}
}

//
func (d *Daemon) Serve() error {
	if d.port == "" {
		return d.freeRun()
	}
	return d.listen()
}

//
func (d *Daemon) Stop() {
	atomic.StoreInt32(&d.stopped, 1)
}

//
func (d *Daemon) isStopped() bool {
	return atomic.LoadInt32(&d.stopped) != 0
}

// freeRun advances the core in wall-clock sized slices, yielding in
// between so host API calls get at the core mutex.
func (d *Daemon) freeRun() error {

	log.Info("no adapter port configured, running in loopback mode")

	for !d.isStopped() {
		d.core.Advance(sim.Milliseconds(loopbackSlice))
		time.Sleep(loopbackSlice * time.Millisecond)
	}

	return ErrDaemonStopped
}

//
func (d *Daemon) listen() error {

	if err := d.ResetConduit(); err != nil {
		return err
	}

	var cmd *command
	var err error

	for ; !d.isStopped(); cmd = nil {

		if d.synced {
			if cmd, err = d.conduit.receiveCommand(); err != nil {
				log.Errorf("error receiving command: %v", err)
				d.synced = false
			}

		} else {
			if err = d.conduit.syncOnHello(); err != nil {
				log.Errorf("error syncing with adapter: %v", err)
			} else {
				d.synced = true
			}
		}

		if err != nil {
			if err := d.ResetConduit(); err != nil {
				return err
			}

		} else if cmd != nil {
			if err = cmd.dispatch(d); err != nil {
				log.Errorf("error dispatching command: %v", err)
				d.synced = false
			}
		}
	}

	return ErrDaemonStopped
}

//
func (d *Daemon) ResetConduit() error {

	d.synced = false

	if d.conduit != nil {
		log.Infof("closing port %s", d.port)
		if err := d.conduit.close(); err != nil {
			log.Errorf("error closing port: %v", err)
		}
		d.conduit = nil
	}

	maxBackoff := 15 * time.Second

	for backoff := time.Second; !d.isStopped(); {
		log.Infof("opening port %s", d.port)
		if con, err := newConduit(d.port); err != nil {
			log.Errorf("cannot open serial port: %v", err)
			if backoff < maxBackoff {
				backoff *= 2
			}
			time.Sleep(backoff)
		} else {
			d.conduit = con
			return nil
		}
	}

	return ErrDaemonStopped
}

// pass-throughs for the control API

//
func (d *Daemon) Status() Status {
	return d.core.Status()
}

//
func (d *Daemon) StartDetect() {
	d.core.StartDetect()
}

//
func (d *Daemon) Detection() (qic.DriveIdentity, bool, bool) {
	return d.core.Detection()
}

//
func (d *Daemon) Instrumentation() signal.ProbeSnapshot {
	return d.core.Instrumentation()
}

//
func (d *Daemon) ResetInstrumentation() {
	d.core.ResetInstrumentation()
}

//
func (d *Daemon) Configure(item string, arg int) error {
	return d.core.Configure(item, arg)
}

//
func (d *Daemon) ReadRegister(instance string, reg int) (byte, error) {
	return d.core.ReadRegister(instance, reg)
}

//
func (d *Daemon) WriteRegister(instance string, reg int, val byte) error {
	return d.core.WriteRegister(instance, reg, val)
}
