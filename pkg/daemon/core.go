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
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/retroflux/driveback/pkg/fdc"
	"github.com/retroflux/driveback/pkg/media"
	"github.com/retroflux/driveback/pkg/qic"
	"github.com/retroflux/driveback/pkg/signal"
	"github.com/retroflux/driveback/pkg/sim"
)

//
type CoreConfig struct {
	//
	Timing qic.Timing
	// identification the modeled loopback drive reports
	Profile qic.Profile
	// ticks between segment boundary pulses of the modeled drive
	SegmentTicks int
	//
	Rate  signal.DataRate
	Zones []signal.Zone
	// replay pacing of the synthetic media, ticks per byte slot
	ByteTicks int
	//
	HuntTimeout int
	//
	WriteProtected bool
	// synthetic media; either may be nil
	Track *media.Track
	Tape  []media.TapeBlock
}

//
func (c *CoreConfig) fill() {
	if c.Timing.PulseHigh == 0 {
		c.Timing = qic.DefaultTiming()
	}
	if c.SegmentTicks <= 0 {
		c.SegmentTicks = sim.Milliseconds(10)
	}
	if c.ByteTicks <= 0 {
		// an MFM byte spans 16 channel bit cells
		c.ByteTicks = c.Rate.CellTicks() * 16
	}
}

/*
	Core assembles the complete controller: the two floppy engines, the
	read/write signal chain, the QIC-117 controller side and a modeled
	loopback tape drive, all stepped by one clock. The shared cable lines
	pass through the mode-gated mux.

	Host accesses - register reads and writes, configuration, snapshots -
	take the core mutex and therefore always land between ticks. Whoever
	advances the clock holds the same mutex, so a register access never
	observes a half-finished tick.
*/
type Core struct {
	mu    sync.Mutex
	clock *sim.Clock

	engineA *fdc.Engine
	engineB *fdc.Engine
	sel     *fdc.Engine // engine currently owning the cable

	zones    *signal.ZoneCalculator
	recovery *signal.BitRecovery
	asm      *signal.Assembler
	encoder  *signal.WriteEncoder
	probe    *signal.FluxProbe
	feed     *fluxFeed

	pulser   *qic.CommandPulser
	decoder  *qic.ResponseDecoder
	detect   *qic.AutoDetect
	streamer *qic.BlockStreamer
	drive    *qic.Drive

	mux *LineMux

	track *media.TrackPlayer
	tape  *media.TapePlayer

	dor  fdc.DigitalOut
	tdr  fdc.TapeSelect
	rate signal.DataRate

	writeProtected bool
}

//
func NewCore(cfg CoreConfig) *Core {

	cfg.fill()

	c := &Core{
		clock:          &sim.Clock{},
		engineA:        fdc.NewEngine(fdc.Config{Instance: "A", HuntTimeout: cfg.HuntTimeout}),
		engineB:        fdc.NewEngine(fdc.Config{Instance: "B", HuntTimeout: cfg.HuntTimeout}),
		zones:          &signal.ZoneCalculator{Zones: cfg.Zones, Default: cfg.Rate},
		recovery:       signal.NewBitRecovery(cfg.Rate),
		asm:            &signal.Assembler{},
		encoder:        signal.NewWriteEncoder(cfg.Rate),
		probe:          &signal.FluxProbe{},
		feed:           &fluxFeed{},
		pulser:         qic.NewCommandPulser(cfg.Timing),
		decoder:        qic.NewResponseDecoder(cfg.Timing),
		streamer:       qic.NewBlockStreamer(),
		drive:          qic.NewDrive(cfg.Timing, cfg.Profile, cfg.SegmentTicks),
		mux:            &LineMux{},
		rate:           cfg.Rate,
		writeProtected: cfg.WriteProtected,
	}
	c.sel = c.engineA
	c.detect = qic.NewAutoDetect(cfg.Timing, c.pulser, c.decoder)

	if cfg.Track != nil {
		c.track = media.NewTrackPlayer(*cfg.Track, cfg.ByteTicks)
	}
	if len(cfg.Tape) > 0 {
		c.tape = media.NewTapePlayer(cfg.Tape, cfg.ByteTicks)
	}

	c.clock.Wire(c.wire)
	if c.track != nil {
		c.clock.Add(c.track)
	}
	if c.tape != nil {
		c.clock.Add(c.tape)
	}
	c.clock.Add(
		c.feed, c.zones, c.recovery, c.asm, c.encoder, c.probe,
		c.detect, c.pulser, c.mux, c.drive, c.decoder, c.streamer,
		c.engineA.Step, c.engineA, c.engineB.Step, c.engineB,
	)

	return c
}

// wire copies previous-tick outputs into this tick's inputs; the clock
// runs it before every tick.
func (c *Core) wire() {

	tape := c.tdr.TapeMode
	sel := c.sel
	motor := c.dor.Enabled && c.dor.MotorOn[sel.OutDriveSelect&0x03]

	st := c.drive.Position.State()
	streaming := st == qic.StreamingForward || st == qic.StreamingReverse

	// synthetic media gating
	if c.track != nil {
		c.track.InEnable = !tape && motor
	}
	if c.tape != nil {
		c.tape.InEnable = tape && streaming
	}

	// floppy byte path into the cable-owning engine
	if c.track != nil && !tape {
		sel.InByte = c.track.OutByte
		sel.InByteReady = c.track.OutReady
		sel.InSync = c.track.OutSync
		sel.InLocked = c.track.OutLocked
		sel.InIndex = c.track.OutIndex
	} else {
		sel.InByteReady = false
		sel.InSync = false
		sel.InLocked = false
		sel.InIndex = false
	}
	sel.InIndexMark = c.asm.OutIndexMark
	sel.InReady = motor && c.track != nil
	sel.InWriteProtect = c.writeProtected

	// the data rate follows the head position through the zone table
	c.zones.InCylinder = sel.Step.Physical()
	c.recovery.InRelock = c.zones.OutChanged
	if c.zones.OutChanged {
		c.recovery.SetRate(c.zones.OutRate)
		c.encoder.SetRate(c.zones.OutRate)
		c.rate = c.zones.OutRate
	}

	// write path, with the encoder's flux looped back through the read
	// chain as a write monitor
	c.encoder.InEnable = sel.OutWriteGate
	c.encoder.InByte = sel.OutWriteByte
	c.encoder.InMark = sel.OutWriteMark
	c.encoder.InStrobe = sel.OutWriteStrobe
	sel.InWriteNext = c.encoder.OutNext
	sel.InWriteDone = c.encoder.OutByteDone

	c.recovery.InFlux = c.encoder.OutFlux || c.feed.Out
	c.asm.InEnable = sel.OutWriteGate
	c.asm.InBit = c.recovery.OutBit
	c.asm.InValid = c.recovery.OutValid

	c.probe.InFlux = c.encoder.OutFlux || c.feed.Out
	c.probe.InIndex = c.mux.OutIndex

	// shared cable lines
	c.mux.InTapeMode = tape
	c.mux.InStepFloppy = sel.Step.OutStep
	c.mux.InStepTape = c.pulser.OutLine
	c.mux.InTrack0 = sel.Step.OutAtTrack0
	c.mux.InStatusLine = c.drive.OutLine
	c.mux.InIndex = c.track != nil && c.track.OutIndex
	c.mux.InSegment = c.drive.OutSegment

	// tape side
	c.drive.InEnable = tape
	c.drive.InLine = c.mux.OutStep
	c.drive.InFileMark = c.streamer.OutFileMark
	c.decoder.InLine = c.mux.OutStatus

	c.streamer.InEnable = tape && streaming
	if c.tape != nil {
		c.streamer.InLocked = c.tape.OutLocked
		c.streamer.InSync = c.tape.OutSync
		c.streamer.InByte = c.tape.OutByte
		c.streamer.InReady = c.tape.OutReady
	} else {
		c.streamer.InLocked = false
		c.streamer.InSync = false
		c.streamer.InReady = false
	}
}

// Advance steps the whole core by n ticks.
func (c *Core) Advance(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock.Run(n)
}

//
func (c *Core) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Now()
}

//
func (c *Core) engine(instance string) (*fdc.Engine, error) {
	switch instance {
	case "A", "":
		return c.engineA, nil
	case "B":
		return c.engineB, nil
	}
	return nil, fmt.Errorf("unknown engine instance: %s", instance)
}

/*
	WriteRegister performs a host write to the 82077AA-compatible
	register file. FIFO and MSR route to the engine named by instance;
	writing an engine's digital output register also hands it the cable.
*/
func (c *Core) WriteRegister(instance string, reg int, val byte) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	eng, err := c.engine(instance)
	if err != nil {
		return err
	}

	switch reg {

	case fdc.RegDigitalOut:
		d := fdc.DecodeDigitalOut(val)
		if c.dor.Enabled && !d.Enabled {
			c.engineA.Reset()
			c.engineB.Reset()
		}
		c.dor = d
		c.sel = eng
		log.WithFields(log.Fields{
			"fdc": eng.Instance(), "value": fmt.Sprintf("%#02x", val),
		}).Debug("digital output register written")

	case fdc.RegTapeDrive:
		ts, err := fdc.DecodeTapeSelect(val)
		if err != nil {
			return err
		}
		c.tdr = ts
		log.WithFields(log.Fields{
			"tape": ts.TapeMode, "drive": ts.Drive,
		}).Debug("tape drive register written")

	case fdc.RegMainStatus, fdc.RegDigitalIn:
		// DSR respectively CCR on write, both carry the rate select
		c.setRate(fdc.RateFromSelect(val))

	case fdc.RegFIFO:
		return eng.WriteByte(val)

	default:
		return fmt.Errorf("register %d is not writable", reg)
	}

	return nil
}

//
func (c *Core) ReadRegister(instance string, reg int) (byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	eng, err := c.engine(instance)
	if err != nil {
		return 0, err
	}

	switch reg {

	case fdc.RegStatusA:
		// interrupt, track zero, index and step line composite
		var b byte
		if eng.OutInterrupt {
			b |= 0x80
		}
		if c.mux.OutTrack0 {
			b |= 0x10
		}
		if c.mux.OutIndex {
			b |= 0x04
		}
		if c.mux.OutStep {
			b |= 0x02
		}
		return b, nil

	case fdc.RegStatusB:
		// motor, gate and select line composite
		var b byte
		if c.dor.MotorOn[0] {
			b |= 0x01
		}
		if c.dor.MotorOn[1] {
			b |= 0x02
		}
		if eng.OutWriteGate {
			b |= 0x04
		}
		if eng.OutReadGate {
			b |= 0x08
		}
		b |= byte(eng.OutDriveSelect&0x03) << 4
		return b, nil

	case fdc.RegDigitalOut:
		return c.dor.Encode(), nil

	case fdc.RegTapeDrive:
		return c.tdr.Encode(), nil

	case fdc.RegMainStatus:
		return eng.MSR(), nil

	case fdc.RegFIFO:
		return eng.ReadByte()

	case fdc.RegDigitalIn:
		return 0, nil // no disk change modeled

	default:
		return 0, fmt.Errorf("unknown register: %d", reg)
	}
}

//
func (c *Core) setRate(r signal.DataRate) {
	c.rate = r
	c.zones.Default = r
	c.recovery.SetRate(r)
	c.encoder.SetRate(r)
	log.WithField("rate", r.String()).Debug("data rate select written")
}

/*
	Configure applies one named configuration item: mode (floppy/tape),
	rate (the two bit rate select), or drive (tape drive number).
*/
func (c *Core) Configure(item string, arg int) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	switch item {

	case "mode":
		switch arg {
		case 0:
			c.tdr = fdc.TapeSelect{}
		case 1:
			if c.tdr.Drive == 0 {
				c.tdr.Drive = 1
			}
			c.tdr.TapeMode = true
		default:
			return fmt.Errorf("illegal mode: %d", arg)
		}

	case "rate":
		if arg < 0 || arg > 3 {
			return fmt.Errorf("illegal rate select: %d", arg)
		}
		c.setRate(fdc.RateFromSelect(byte(arg)))

	case "drive":
		ts := fdc.TapeSelect{TapeMode: true, Drive: arg}
		if _, err := fdc.DecodeTapeSelect(ts.Encode()); err != nil {
			return err
		}
		c.tdr = ts

	default:
		return fmt.Errorf("unknown config item: %s", item)
	}

	log.WithFields(log.Fields{"item": item, "arg": arg}).Info("configured")
	return nil
}

// StartDetect kicks off the drive identification sequence, switching to
// tape mode first if need be.
func (c *Core) StartDetect() {

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tdr.TapeMode {
		c.tdr = fdc.TapeSelect{TapeMode: true, Drive: 1}
	}
	c.detect.Start()
}

// Detection reports the state of the last identification run.
func (c *Core) Detection() (qic.DriveIdentity, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detect.Identity, c.detect.OutInProgress, c.detect.OutDone
}

// FeedFlux queues host captured transition intervals, in units of
// eight ticks each, for replay into the read chain.
func (c *Core) FeedFlux(intervals []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed.push(intervals)
}

// SetWriteProtect drives the write protect input line.
func (c *Core) SetWriteProtect(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeProtected = on
	log.WithField("writeProtect", on).Debug("input line driven")
}

//
func (c *Core) Instrumentation() signal.ProbeSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probe.Snapshot()
}

//
func (c *Core) ResetInstrumentation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probe.Reset()
}

// EngineStatus is a host-visible snapshot of one engine.
type EngineStatus struct {
	Instance string `json:"instance"`
	Busy     bool   `json:"busy"`
	MSR      byte   `json:"msr"`
	Cylinder int    `json:"cylinder"`
	Cable    bool   `json:"cable"`
}

// TapeStatus is a host-visible snapshot of the modeled tape mechanism.
type TapeStatus struct {
	State   string `json:"state"`
	Track   int    `json:"track"`
	Segment int    `json:"segment"`
	Status  byte   `json:"status"`
	AtBOT   bool   `json:"atBOT"`
	AtEOT   bool   `json:"atEOT"`
}

//
type Status struct {
	Ticks    uint64         `json:"ticks"`
	TapeMode bool           `json:"tapeMode"`
	Drive    int            `json:"drive"`
	Rate     string         `json:"rate"`
	Engines  []EngineStatus `json:"engines"`
	Tape     TapeStatus     `json:"tape"`
}

//
func (c *Core) Status() Status {

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Ticks:    c.clock.Now(),
		TapeMode: c.tdr.TapeMode,
		Drive:    c.tdr.Drive,
		Rate:     c.rate.String(),
	}

	for _, e := range []*fdc.Engine{c.engineA, c.engineB} {
		s.Engines = append(s.Engines, EngineStatus{
			Instance: e.Instance(),
			Busy:     e.Busy(),
			MSR:      e.MSR(),
			Cylinder: e.Step.Logical(),
			Cable:    e == c.sel,
		})
	}

	p := c.drive.Position
	s.Tape = TapeStatus{
		State:   p.State().String(),
		Track:   p.OutTrack,
		Segment: p.OutSegment,
		Status:  p.Status().Encode(),
		AtBOT:   p.OutAtBOT,
		AtEOT:   p.OutAtEOT,
	}

	return s
}
