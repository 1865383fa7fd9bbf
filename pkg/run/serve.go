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

package run

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/retroflux/driveback/pkg/control"
	"github.com/retroflux/driveback/pkg/daemon"
	"github.com/retroflux/driveback/pkg/fdc"
	"github.com/retroflux/driveback/pkg/media"
	"github.com/retroflux/driveback/pkg/qic"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve [-d|--device {device}] [-a|--address {address}] [-r|--rate {0..3}]`,
		"daemon & API server command",
		`Use the serve command for running the controller daemon and API server. With a
serial device configured, the daemon serves the register protocol to the attached
acquisition adapter; without one it free-runs the core against synthetic media,
which is the loopback mode.`,
		"", `- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.Device, "device", "d", "DRIVEBACK_DEVICE", "",
		`serial port device of the acquisition adapter; when
omitted, the daemon runs in loopback mode`, false)
	s.AddSetting(&s.Rate, "rate", "r", "DRIVEBACK_RATE", 0,
		"data rate select, 82077AA encoding, 0 through 3", false)

	return s
}

//
type Serve struct {
	//
	Runner
	//
	Device string
	Rate   int
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	if s.Rate < 0 || s.Rate > 3 {
		return fmt.Errorf("illegal rate select: %d", s.Rate)
	}

	core := daemon.NewCore(daemon.CoreConfig{
		Rate:    fdc.RateFromSelect(byte(s.Rate)),
		Profile: demoProfile,
		Track:   demoTrack(),
		Tape:    media.Segment(0x00),
	})

	wg := &sync.WaitGroup{}
	wg.Add(2)

	d := daemon.NewDaemon(s.Device, core)
	go func() {
		defer wg.Done()
		err := d.Serve()
		if err != nil && err != daemon.ErrDaemonStopped {
			log.Errorf("daemon closed with error: %v", err)
		} else {
			log.Info("daemon stopped")
		}
	}()

	api := control.NewAPIServer(s.Address, d)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs: // interrupt signal
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					api.Stop()
					d.Stop()
					wg.Wait()
					log.Info("Driveback stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing daemon to stop immediately")
				os.Exit(1)
			}

		case <-done: // shutdown sequence complete
			return nil
		}
	}
}

// identification the loopback drive reports, a Conner QIC-80 profile
var demoProfile = qic.Profile{
	Vendor: 0x0011,
	Model:  0x05,
	Rom:    0x63,
	Config: 0x40,
}

// a standard nine sector track for the loopback floppy side
func demoTrack() *media.Track {

	t := &media.Track{Gap: 22}
	for n := 1; n <= 9; n++ {
		t.Sectors = append(t.Sectors, media.Sector{
			Cylinder: 0, Head: 0, Number: n, SizeCode: 2,
		})
	}
	return t
}
