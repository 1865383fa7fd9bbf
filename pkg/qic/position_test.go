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
)

// small tape for position tests
func testPosition() *Position {
	p := NewPosition(testTiming())
	p.MaxSegments = 16
	p.MaxTracks = 4
	return p
}

// ticks the machine with a segment pulse every fifth tick, until it
// settles back to idle or the budget runs out
func runMotion(t *testing.T, p *Position, budget int) {

	t.Helper()

	for i := 0; i < budget; i++ {
		p.InSegmentPulse = i%5 == 4
		p.Tick()
		if p.state == Idle && i > 0 {
			return
		}
		if p.state == Error {
			return
		}
	}
	t.Fatalf("machine stuck in state %v after %d ticks", p.state, budget)
}

//
func TestSeekEndOfTape(t *testing.T) {

	p := testPosition()

	p.Apply(CmdSeekEndOfTape)
	if p.State() != MotorSpinup {
		t.Fatalf("no spinup, state %v", p.State())
	}

	runMotion(t, p, 2000)

	if p.OutSegment != p.MaxSegments-1 || !p.OutAtEOT || p.OutAtBOT {
		t.Fatalf("seek EOT ended at segment %d, atEOT %v atBOT %v",
			p.OutSegment, p.OutAtEOT, p.OutAtBOT)
	}
	if p.OutBusy {
		t.Errorf("still busy after reaching EOT")
	}

	p.Apply(CmdSeekLoadPoint)
	runMotion(t, p, 2000)

	if p.OutSegment != 0 || !p.OutAtBOT || p.OutAtEOT {
		t.Fatalf("seek BOT ended at segment %d, atBOT %v atEOT %v",
			p.OutSegment, p.OutAtBOT, p.OutAtEOT)
	}
}

//
func TestSkipSegmentForward(t *testing.T) {

	p := testPosition()

	p.Apply(CmdSkipSegmentsForward)
	runMotion(t, p, 500)

	if p.OutSegment != 1 {
		t.Fatalf("skip forward ended at segment %d, want 1", p.OutSegment)
	}

	p.Apply(CmdSkipSegmentsReverse)
	runMotion(t, p, 500)

	if p.OutSegment != 0 {
		t.Fatalf("skip reverse ended at segment %d, want 0", p.OutSegment)
	}
}

//
func TestSerpentineTrackChange(t *testing.T) {

	p := testPosition()

	p.Apply(CmdLogicalForward)

	// run until the first direction flip
	for i := 0; i < 2000 && p.OutForward; i++ {
		p.InSegmentPulse = i%5 == 4
		p.Tick()
	}

	if p.OutForward {
		t.Fatalf("no serpentine reversal at EOT")
	}
	if p.OutTrack != 1 {
		t.Fatalf("track %d after reversal, want 1", p.OutTrack)
	}
	if p.State() != StreamingReverse {
		t.Fatalf("state %v after reversal", p.State())
	}

	// keep streaming; on the last track the machine must stop instead
	// of flipping again
	for i := 0; i < 20000 && p.State() != Idle; i++ {
		p.InSegmentPulse = i%5 == 4
		p.Tick()
	}

	if p.State() != Idle {
		t.Fatalf("never stopped, state %v track %d", p.State(), p.OutTrack)
	}
	if p.OutTrack != p.MaxTracks-1 {
		t.Fatalf("stopped on track %d, want %d", p.OutTrack, p.MaxTracks-1)
	}
}

//
func TestFileMarkSkip(t *testing.T) {

	p := testPosition()

	p.Apply(CmdSkipFileMarksForward)

	// the head reaches a file mark after the fourth segment pulse
	pulses := 0
	for i := 0; i < 2000 && p.State() != Idle; i++ {
		p.InSegmentPulse = i%5 == 4
		if p.InSegmentPulse {
			pulses++
		}
		p.InFileMark = pulses >= 4
		p.Tick()
	}

	if !p.OutAtFileMark {
		t.Fatalf("file mark not reported, state %v", p.State())
	}
	if p.State() != Idle {
		t.Fatalf("not idle after file mark, state %v", p.State())
	}
}

//
func TestFileMarkSkipRunsOffTape(t *testing.T) {

	p := testPosition()
	p.InFileMark = false

	p.Apply(CmdSkipFileMarksForward)
	runMotion(t, p, 2000)

	if p.State() != Error {
		t.Fatalf("state %v after running off tape, want error", p.State())
	}

	// only a reset clears the error
	p.Apply(CmdSeekLoadPoint)
	if p.State() != Error {
		t.Fatalf("non-reset command left error state")
	}
	p.Apply(CmdSoftReset)
	if p.State() != Idle {
		t.Fatalf("reset did not clear error state")
	}
}

//
func TestPauseStopsMotion(t *testing.T) {

	p := testPosition()

	p.Apply(CmdLogicalForward)
	for i := 0; i < 100; i++ {
		p.InSegmentPulse = i%5 == 4
		p.Tick()
	}
	if !p.moving() {
		t.Fatalf("not moving before pause, state %v", p.State())
	}

	p.Apply(CmdPause)
	runMotion(t, p, 200)

	if p.State() != Idle || p.OutBusy {
		t.Fatalf("pause did not settle to idle, state %v", p.State())
	}
}

//
func TestStatusWordRoundTrip(t *testing.T) {

	s := StatusWord{
		Ready: true, Cartridge: true, WriteProtected: true, AtBOT: true,
	}
	if got := DecodeStatusWord(s.Encode()); got != s {
		t.Fatalf("status word round trip: %+v != %+v", got, s)
	}
	if s.Encode() != 0x4d {
		t.Fatalf("status word encoded to %#02x", s.Encode())
	}
}

//
func TestEject(t *testing.T) {

	p := testPosition()

	p.Apply(CmdEject)
	for i := 0; i < 100 && p.State() != Idle; i++ {
		p.Tick()
	}

	if p.Cartridge {
		t.Fatalf("cartridge still present after eject")
	}
	st := p.Status()
	if st.Ready || st.Cartridge {
		t.Fatalf("status after eject: %+v", st)
	}

	// no cartridge, no motion
	p.Apply(CmdLogicalForward)
	if p.State() != Idle {
		t.Fatalf("motion started without cartridge")
	}
}
