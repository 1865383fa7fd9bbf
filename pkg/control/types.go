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

package control

import (
	"fmt"

	"github.com/retroflux/driveback/pkg/daemon"
	"github.com/retroflux/driveback/pkg/qic"
	"github.com/retroflux/driveback/pkg/signal"
)

// Detection is the API surface of a drive identification run.
type Detection struct {
	InProgress bool     `json:"inProgress"`
	Done       bool     `json:"done"`
	Present    bool     `json:"present"`
	Vendor     uint16   `json:"vendor"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Model      byte     `json:"model"`
	Rom        byte     `json:"rom"`
	Config     byte     `json:"config"`
	MaxTracks  int      `json:"maxTracks"`
	Rates      []string `json:"rates"`
}

//
func newDetection(id qic.DriveIdentity, inProgress, done bool) *Detection {

	d := &Detection{
		InProgress: inProgress,
		Done:       done,
		Present:    id.Present,
		Vendor:     id.Vendor,
		Name:       id.Name,
		Type:       id.Type.String(),
		Model:      id.Model,
		Rom:        id.Rom,
		Config:     id.Config,
		MaxTracks:  id.MaxTracks,
	}

	for _, r := range []signal.DataRate{
		signal.Rate250K, signal.Rate300K, signal.Rate500K, signal.Rate1M,
	} {
		if id.Rates&r.Mask() != 0 {
			d.Rates = append(d.Rates, r.String())
		}
	}

	return d
}

//
func (d *Detection) String() string {

	if d.InProgress {
		return "detection in progress"
	}
	if !d.Done {
		return "no detection run yet"
	}
	if !d.Present {
		return "no tape drive detected"
	}

	ret := fmt.Sprintf("%s %s, vendor 0x%04x, model 0x%02x, rom 0x%02x",
		d.Name, d.Type, d.Vendor, d.Model, d.Rom)
	ret += fmt.Sprintf("\ntracks: %d", d.MaxTracks)
	ret += "\nrates:"
	for _, r := range d.Rates {
		ret += " " + r
	}
	return ret
}

// Instrumentation is the API surface of the flux probe counters.
type Instrumentation struct {
	Transitions uint64   `json:"transitions"`
	Indexes     uint64   `json:"indexes"`
	Intervals   []uint64 `json:"intervals"`
}

//
func (i *Instrumentation) String() string {
	return fmt.Sprintf(
		"flux transitions: %d\nindex pulses:     %d\ninterval buckets: %v",
		i.Transitions, i.Indexes, i.Intervals)
}

//
func statusText(s daemon.Status) string {

	mode := "floppy"
	if s.TapeMode {
		mode = fmt.Sprintf("tape, drive %d", s.Drive)
	}

	ret := fmt.Sprintf("tick %d | mode: %s | rate: %s", s.Ticks, mode, s.Rate)

	for _, e := range s.Engines {
		cable := ""
		if e.Cable {
			cable = ", cable"
		}
		ret += fmt.Sprintf("\nengine %s: msr 0x%02x, cylinder %d%s",
			e.Instance, e.MSR, e.Cylinder, cable)
	}

	ret += fmt.Sprintf("\ntape: %s, track %d, segment %d, status 0x%02x",
		s.Tape.State, s.Tape.Track, s.Tape.Segment, s.Tape.Status)

	return ret
}
