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

package qic

import (
	"testing"

	"github.com/retroflux/driveback/pkg/signal"
)

// runs a full detection sequence against a modeled drive, with the
// command and status lines handed over with one tick of latency
func runDetect(t *testing.T, drive *Drive, budget int) *AutoDetect {

	t.Helper()

	tm := testTiming()
	pulser := NewCommandPulser(tm)
	dec := NewResponseDecoder(tm)
	det := NewAutoDetect(tm, pulser, dec)

	det.Start()

	cmdLine := false
	statusLine := true

	for i := 0; i < budget && !det.OutDone; i++ {
		if drive != nil {
			drive.InLine = cmdLine
		}
		dec.InLine = statusLine

		det.Tick()
		pulser.Tick()
		if drive != nil {
			drive.Tick()
			statusLine = drive.OutLine
		}
		dec.Tick()
		cmdLine = pulser.OutLine
	}

	if !det.OutDone {
		t.Fatalf("detection never finished")
	}
	return det
}

//
func TestAutoDetectLoopback(t *testing.T) {

	drive := NewDrive(testTiming(), Profile{
		Vendor: 0x0011, // Conner
		Model:  0x05,
		Rom:    0x63,
		Config: 0x40,
	}, 7)
	drive.InEnable = true

	det := runDetect(t, drive, 100000)

	if det.OutErr {
		t.Fatalf("detection failed")
	}
	if !det.OutPresent {
		t.Fatalf("drive not detected")
	}

	id := det.Identity
	if !id.VendorKnown || id.Vendor != 0x0011 {
		t.Fatalf("vendor %#04x known %v", id.Vendor, id.VendorKnown)
	}
	if !id.ModelKnown || id.Model != 0x05 {
		t.Errorf("model %#02x known %v", id.Model, id.ModelKnown)
	}
	if !id.RomKnown || id.Rom != 0x63 {
		t.Errorf("rom %#02x known %v", id.Rom, id.RomKnown)
	}
	if !id.ConfigKnown || id.Config != 0x40 {
		t.Errorf("config %#02x known %v", id.Config, id.ConfigKnown)
	}

	if id.Type != TypeQIC80 {
		t.Errorf("decoded type %v, want QIC-80", id.Type)
	}
	if id.Name != "Conner" {
		t.Errorf("decoded vendor name %q", id.Name)
	}
	if id.MaxTracks != 28 {
		t.Errorf("max tracks %d", id.MaxTracks)
	}
	if id.Rates&signal.Rate1M.Mask() == 0 {
		t.Errorf("1M rate missing from bitmap %#02x", id.Rates)
	}
}

// an absent drive must fail the sequence at the presence phase
func TestAutoDetectNoDrive(t *testing.T) {

	det := runDetect(t, nil, 100000)

	if !det.OutErr {
		t.Fatalf("missing drive not reported as error")
	}
	if det.OutPresent {
		t.Fatalf("phantom presence")
	}
}

//
func TestIdentityDecodeFallback(t *testing.T) {

	id := DriveIdentity{Vendor: 0x0abc, VendorKnown: true}
	decodeIdentity(&id)

	if id.Type != TypeUnknown || id.Name != "generic" {
		t.Fatalf("unknown vendor decoded to %v %q", id.Type, id.Name)
	}
	if id.MaxTracks != genericTracks {
		t.Errorf("generic max tracks %d", id.MaxTracks)
	}
	if id.Rates&signal.Rate250K.Mask() == 0 ||
		id.Rates&signal.Rate500K.Mask() == 0 {
		t.Errorf("generic rate bitmap %#02x", id.Rates)
	}
}

//
func TestIdentityDecodeModelVariant(t *testing.T) {

	id := DriveIdentity{
		Vendor: 0x0047, VendorKnown: true,
		Model: 0x85, ModelKnown: true,
	}
	decodeIdentity(&id)

	if id.Type != TypeQIC3010 {
		t.Fatalf("high model bit decoded to %v, want QIC-3010", id.Type)
	}
	if id.MaxTracks != 40 {
		t.Errorf("max tracks %d, want 40", id.MaxTracks)
	}
}
