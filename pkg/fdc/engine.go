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

package fdc

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/retroflux/driveback/pkg/signal"
	"github.com/retroflux/driveback/pkg/sim"
)

//
type engineState int

const (
	stIdle engineState = iota
	stParams
	stSeekWait
	stHuntID
	stHuntData
	stReadData
	stWriteSector
	stFormatWait
	stFormatTrack
	stResult
)

// version byte reported by the version command
const versionEnhanced = 0x90

// bytes of write lead-in: gap of zeros before the sync marks
const writeLeadZeros = 12
const writeSyncMarks = 3

//
type Config struct {
	// Instance tells the two engines of the dual controller apart; it
	// only selects which physical pins they multiplex onto.
	Instance string
	// Drives is the number of selectable drives, at most 4.
	Drives int
	// HuntTimeout bounds any wait for an address mark, in ticks.
	HuntTimeout int
	// ManualStepping leaves double step selection to the host instead
	// of following the track width analyzer.
	ManualStepping bool
}

//
func (c *Config) fill() {
	if c.Instance == "" {
		c.Instance = "A"
	}
	if c.Drives <= 0 || c.Drives > 4 {
		c.Drives = 4
	}
	if c.HuntTimeout <= 0 {
		c.HuntTimeout = sim.Milliseconds(600)
	}
}

/*
	Engine is the floppy command protocol engine: a finite state machine
	decoding command opcodes and parameters, sequencing seek, read,
	write, format and read-id operations, and producing the standardized
	result bytes. Commands and result bytes cross the host boundary
	through WriteByte/ReadByte between ticks; everything drive-side moves
	through the per-tick input and output fields.

	Two independent instances exist in the dual controller, telling each
	other apart only by Config.Instance.
*/
type Engine struct {
	// recovered byte stream
	InByte      byte
	InByteReady bool
	InSync      bool
	InIndexMark bool
	InLocked    bool

	// drive lines
	InIndex        bool
	InWriteProtect bool
	InReady        bool

	// write encoder handshake
	InWriteNext bool
	InWriteDone bool

	OutDriveSelect int
	OutHeadSelect  int
	OutMotorOn     bool
	OutReadGate    bool
	OutWriteGate   bool
	OutInterrupt   bool

	OutWriteByte   byte
	OutWriteMark   bool
	OutWriteStrobe bool

	Step     *StepController
	Analyzer *TrackWidthAnalyzer

	cfg Config
	crc signal.CRC16

	state   engineState
	cmd     Command
	spec    commandSpec
	results ResultSet

	fifo        []byte // transfer data between host and medium
	transferred int

	// requested position
	reqCyl, reqHead, reqSec, reqSize int
	endOfTrack                       int
	dataLength                       int

	// field collection
	collecting bool
	fieldBuf   []byte
	field      IdentificationField
	sawSync    bool
	sawField   bool
	crcSeen    bool
	budget     int

	// write sequencing
	wrStage int // counts lead bytes, marks, data, crc, gap
	wrData  int
	wrCRC   uint16

	// format sequencing
	fmtSize    int
	fmtCount   int
	fmtGap     int
	fmtFill    byte
	fmtDone    int
	fmtRecord  []byte
	lastRecord IdentificationField

	// seek interrupt bookkeeping
	intPending bool
	intST0     ST0
}

//
func NewEngine(cfg Config) *Engine {
	cfg.fill()
	return &Engine{
		cfg:      cfg,
		Step:     NewStepController(),
		Analyzer: NewTrackWidthAnalyzer(),
	}
}

//
func (e *Engine) Instance() string {
	return e.cfg.Instance
}

// Busy reports whether a command is being decoded, executed or waiting
// for its results to be drained.
func (e *Engine) Busy() bool {
	return e.state != stIdle
}

// Reset forces the engine back to idle, dropping any in-flight
// operation. Gates and busy lines are deasserted so the abandonment is
// observable.
func (e *Engine) Reset() {
	e.state = stIdle
	e.results.reset()
	e.fifo = e.fifo[:0]
	e.transferred = 0
	e.collecting = false
	e.OutReadGate = false
	e.OutWriteGate = false
	e.OutMotorOn = false
	e.OutInterrupt = false
	e.intPending = false
	e.Step.Reset()
	log.WithFields(log.Fields{"fdc": e.cfg.Instance}).Debug("engine reset")
}

// MSR builds the main status register byte.
func (e *Engine) MSR() byte {

	var b byte

	switch e.state {

	case stIdle:
		b = MSRRequestForMaster

	case stParams:
		b = MSRRequestForMaster | MSRCommandBusy

	case stResult:
		b = MSRRequestForMaster | MSRDataToHost | MSRCommandBusy

	default:
		b = MSRCommandBusy | MSRNonDMA
		if len(e.fifo) > 0 && e.reading() {
			b |= MSRRequestForMaster | MSRDataToHost
		} else if e.writing() {
			b |= MSRRequestForMaster
		}
	}

	if e.Step != nil && e.Step.OutBusy {
		b |= 1 << uint(e.OutDriveSelect&0x03)
	}
	return b
}

//
func (e *Engine) reading() bool {
	switch e.cmd.Op {
	case OpReadData, OpReadDeleted, OpReadTrack:
		return true
	}
	return false
}

//
func (e *Engine) writing() bool {
	switch e.cmd.Op {
	case OpWriteData, OpWriteDeleted, OpFormatTrack:
		return true
	}
	return false
}

/*
	WriteByte accepts one byte from the host FIFO register: a command
	opcode in idle, parameter bytes during collection, transfer data
	during a write. A byte at any other time is a protocol violation and
	rejected without disturbing the running command.
*/
func (e *Engine) WriteByte(b byte) error {

	switch e.state {

	case stIdle:
		if !e.results.Drained() {
			return fmt.Errorf("command rejected, %d result bytes not drained",
				e.results.Remaining())
		}
		return e.decode(b)

	case stParams:
		e.cmd.Params = append(e.cmd.Params, b)
		if len(e.cmd.Params) == e.spec.params {
			e.begin()
		}
		return nil

	case stHuntID, stHuntData, stWriteSector, stFormatWait, stFormatTrack:
		if e.writing() {
			e.fifo = append(e.fifo, b)
			return nil
		}
		return fmt.Errorf("unexpected data byte during %s", e.spec.name)

	default:
		return fmt.Errorf("command byte while busy")
	}
}

/*
	ReadByte hands one byte to the host: transfer data while a read
	command is executing, result bytes afterwards. Draining the last
	result byte returns the engine to idle.
*/
func (e *Engine) ReadByte() (byte, error) {

	if len(e.fifo) > 0 && e.reading() {
		b := e.fifo[0]
		e.fifo = e.fifo[1:]
		return b, nil
	}

	if e.state == stResult {
		b, err := e.results.Read()
		if err != nil {
			return 0, err
		}
		if e.results.Drained() {
			e.state = stIdle
			e.OutInterrupt = false
		}
		return b, nil
	}

	return 0, fmt.Errorf("no data to read")
}

// Transferred returns the number of payload bytes moved by the last
// transfer command.
func (e *Engine) Transferred() int {
	return e.transferred
}

//
func (e *Engine) decode(b byte) error {

	cmd, spec, ok := decodeCommand(b)

	if !ok {
		log.WithFields(log.Fields{
			"fdc": e.cfg.Instance, "opcode": fmt.Sprintf("0x%02x", b),
		}).Debug("invalid command")
		e.results.reset()
		e.results.push(ST0{Code: InvalidCommand}.Encode())
		e.state = stResult
		return nil
	}

	e.cmd = cmd
	e.spec = spec
	e.cmd.Params = nil

	if spec.params == 0 {
		e.begin()
	} else {
		e.state = stParams
	}
	return nil
}

// begin launches execution once all parameter bytes are in.
func (e *Engine) begin() {

	log.WithFields(log.Fields{
		"fdc": e.cfg.Instance, "command": e.spec.name,
		"params": fmt.Sprintf("% x", e.cmd.Params),
	}).Debug("command accepted")

	e.results.reset()
	e.fifo = e.fifo[:0]
	e.transferred = 0
	e.collecting = false
	e.sawSync = false
	e.sawField = false
	e.crcSeen = false
	e.budget = e.cfg.HuntTimeout

	switch e.cmd.Op {

	case OpSenseInterrupt:
		if e.intPending {
			e.intPending = false
			e.results.push(e.intST0.Encode(), byte(e.Step.Logical()))
		} else {
			e.results.push(ST0{Code: InvalidCommand}.Encode())
		}
		e.state = stResult

	case OpSenseDriveStatus:
		e.selectDrive(e.cmd.Params[0])
		e.results.push(ST3{
			WriteProtected: e.InWriteProtect,
			Ready:          e.InReady,
			Track0:         e.Step.OutAtTrack0,
			TwoSide:        true,
			Head:           e.OutHeadSelect,
			Drive:          e.OutDriveSelect,
		}.Encode())
		e.state = stResult

	case OpSpecify:
		// step rate in 82077 encoding, high nibble of the first byte
		srt := 16 - int(e.cmd.Params[0]>>4)
		e.Step.SetStepRate(sim.Milliseconds(srt))
		e.state = stIdle

	case OpConfigure:
		// implied seek / FIFO threshold knobs; accepted, nothing to do
		// in the simulation core
		e.state = stIdle

	case OpVersion:
		e.results.push(versionEnhanced)
		e.state = stResult

	case OpDumpRegisters:
		e.results.push(
			byte(e.Step.Logical()), 0, 0, 0,
			0, 0, byte(e.endOfTrack), 0, 0, 0)
		e.state = stResult

	case OpRecalibrate:
		e.selectDrive(e.cmd.Params[0])
		if err := e.Step.Restore(); err != nil {
			e.failMechanical(ST1{}, ST2{}, true)
			return
		}
		e.state = stSeekWait

	case OpSeek:
		e.selectDrive(e.cmd.Params[0])
		if err := e.Step.Seek(int(e.cmd.Params[1])); err != nil {
			e.failMechanical(ST1{}, ST2{}, true)
			return
		}
		e.state = stSeekWait

	case OpReadID:
		e.selectDrive(e.cmd.Params[0])
		e.OutMotorOn = true
		e.OutReadGate = true
		e.state = stHuntID

	case OpReadData, OpReadDeleted, OpReadTrack:
		e.setupTransfer()
		e.state = stHuntID

	case OpWriteData, OpWriteDeleted:
		e.setupTransfer()
		if e.InWriteProtect {
			// checked before anything irreversible happens
			e.fail(ST1{NotWritable: true}, ST2{})
			return
		}
		e.state = stHuntID

	case OpFormatTrack:
		e.selectDrive(e.cmd.Params[0])
		if e.InWriteProtect {
			e.fail(ST1{NotWritable: true}, ST2{})
			return
		}
		e.OutMotorOn = true
		e.fmtSize = 128 << uint(e.cmd.Params[1]&0x03)
		e.fmtCount = int(e.cmd.Params[2])
		e.fmtGap = int(e.cmd.Params[3])
		e.fmtFill = e.cmd.Params[4]
		e.fmtDone = 0
		e.fmtRecord = nil
		e.state = stFormatWait
	}
}

//
func (e *Engine) setupTransfer() {
	e.selectDrive(e.cmd.Params[0])
	e.OutMotorOn = true
	e.OutReadGate = true
	e.reqCyl = int(e.cmd.Params[1])
	e.reqHead = int(e.cmd.Params[2])
	e.reqSec = int(e.cmd.Params[3])
	e.reqSize = int(e.cmd.Params[4])
	e.endOfTrack = int(e.cmd.Params[5])
	e.dataLength = int(e.cmd.Params[7])
}

//
func (e *Engine) selectDrive(b byte) {
	e.OutDriveSelect = int(b & 0x03)
	e.OutHeadSelect = int(b>>2) & 0x01
}

//
func (e *Engine) sectorSize() int {
	if e.reqSize == 0 {
		// size code zero defers to the data length parameter
		if e.dataLength > 0 && e.dataLength < 128 {
			return e.dataLength
		}
		return 128
	}
	return 128 << uint(e.reqSize&0x03)
}

// fail terminates the current command abnormally with the given status
// bits, CHRN reflecting the requested position.
func (e *Engine) fail(st1 ST1, st2 ST2) {
	e.finish(AbnormalTermination, st1, st2)
}

//
func (e *Engine) failMechanical(st1 ST1, st2 ST2, equipment bool) {
	e.OutReadGate = false
	e.OutWriteGate = false
	e.results.reset()
	e.results.push(ST0{
		Code:           AbnormalTermination,
		EquipmentCheck: equipment,
		Head:           e.OutHeadSelect,
		Drive:          e.OutDriveSelect,
	}.Encode())
	e.state = stResult
	e.OutInterrupt = true
}

//
func (e *Engine) finish(code InterruptCode, st1 ST1, st2 ST2) {

	e.OutReadGate = false
	e.OutWriteGate = false
	e.collecting = false

	st0 := ST0{
		Code:     code,
		NotReady: !e.InReady,
		Head:     e.OutHeadSelect,
		Drive:    e.OutDriveSelect,
	}

	e.results.reset()
	e.results.push(st0.Encode(), st1.Encode(), st2.Encode(),
		byte(e.reqCyl), byte(e.reqHead), byte(e.reqSec), byte(e.reqSize))
	e.state = stResult
	e.OutInterrupt = true

	log.WithFields(log.Fields{
		"fdc": e.cfg.Instance, "command": e.spec.name, "result": code,
		"transferred": e.transferred,
	}).Debug("command finished")
}

//
func (e *Engine) Tick() {

	e.OutWriteStrobe = false
	e.OutWriteMark = false

	switch e.state {

	case stSeekWait:
		if e.Step.OutSeekDone {
			e.intPending = true
			e.intST0 = ST0{
				Code:    NormalTermination,
				SeekEnd: true,
				Head:    e.OutHeadSelect,
				Drive:   e.OutDriveSelect,
			}
			e.OutInterrupt = true
			e.state = stIdle
		}

	case stHuntID:
		e.tickHuntID()

	case stHuntData:
		e.tickHuntData()

	case stReadData:
		e.tickReadData()

	case stWriteSector:
		e.tickWriteSector()

	case stFormatWait:
		if e.InIndex {
			e.OutWriteGate = true
			e.wrStage = 0
			e.wrData = 0
			e.state = stFormatTrack
		} else {
			e.spendBudget(ST1{MissingAddressMark: true}, ST2{})
		}

	case stFormatTrack:
		e.tickFormat()
	}
}

// spendBudget burns one tick of the current phase's timeout budget and
// terminates the command when it runs out. Every wait state is bounded.
func (e *Engine) spendBudget(st1 ST1, st2 ST2) bool {
	if e.budget--; e.budget <= 0 {
		e.fail(st1, st2)
		return true
	}
	return false
}

//
func (e *Engine) huntStatus() (ST1, ST2) {
	st1 := ST1{}
	if !e.sawSync {
		st1.MissingAddressMark = true
	} else {
		st1.NoData = true
		if e.crcSeen {
			st1.DataError = true
		}
	}
	return st1, ST2{}
}

/*
	tickHuntID waits for a validated identification field. Every sync
	mark restarts collection; a complete field with a good CRC is handed
	to the track width analyzer and then matched against the requested
	position. A wrong-cylinder field ends the command, other mismatches
	keep hunting until the budget is spent.
*/
func (e *Engine) tickHuntID() {

	st1, st2 := e.huntStatus()
	if e.spendBudget(st1, st2) {
		return
	}

	if e.InSync {
		e.sawSync = true
		e.startField()
		return
	}

	if !e.collecting || !e.InByteReady {
		return
	}

	e.crc.Feed(e.InByte)
	e.fieldBuf = append(e.fieldBuf, e.InByte)

	if len(e.fieldBuf) == 1 && e.InByte != markID {
		e.collecting = false // some other field, wait for the next sync
		return
	}

	if len(e.fieldBuf) < 7 {
		return
	}

	e.collecting = false

	if !e.crc.Good() {
		e.crcSeen = true
		return
	}

	e.field = IdentificationField{
		Cylinder: int(e.fieldBuf[1]),
		Head:     int(e.fieldBuf[2]),
		Sector:   int(e.fieldBuf[3]),
		SizeCode: int(e.fieldBuf[4]),
	}
	e.sawField = true
	e.Analyzer.Observe(e.field.Cylinder, e.Step.Physical())
	if e.Analyzer.Complete() && !e.cfg.ManualStepping {
		e.Step.SetDoubleStep(e.Analyzer.Recommended())
	}

	if e.cmd.Op == OpReadID {
		e.reqCyl = e.field.Cylinder
		e.reqHead = e.field.Head
		e.reqSec = e.field.Sector
		e.reqSize = e.field.SizeCode
		e.finish(NormalTermination, ST1{}, ST2{})
		return
	}

	if e.field.Cylinder != e.reqCyl {
		if e.field.Cylinder == 0xff {
			e.fail(ST1{NoData: true}, ST2{BadCylinder: true})
		} else {
			e.fail(ST1{NoData: true}, ST2{WrongCylinder: true})
		}
		return
	}

	if e.field.Head != e.reqHead || e.field.Sector != e.reqSec {
		return // not the sector we want, keep hunting
	}

	// matched; move on to the data field
	e.budget = e.cfg.HuntTimeout
	if e.writing() {
		e.OutReadGate = false
		e.OutWriteGate = true
		e.wrStage = 0
		e.wrData = 0
		e.state = stWriteSector
	} else {
		e.state = stHuntData
	}
}

//
func (e *Engine) startField() {
	e.collecting = true
	e.fieldBuf = e.fieldBuf[:0]
	e.crc.Reset()
	for i := 0; i < writeSyncMarks; i++ {
		e.crc.Feed(0xa1)
	}
}

/*
	tickHuntData locates the data address mark following a matched ID
	field.
*/
func (e *Engine) tickHuntData() {

	if e.spendBudget(ST1{MissingAddressMark: true},
		ST2{MissingDataMark: true}) {
		return
	}

	if e.InSync {
		e.startField()
		return
	}

	if !e.collecting || !e.InByteReady {
		return
	}

	e.crc.Feed(e.InByte)

	switch e.InByte {

	case markData, markDeletedData:
		deleted := e.InByte == markDeletedData
		if deleted && e.cmd.Skip {
			// skip flag: pass over deleted sectors silently
			e.collecting = false
			e.nextSector()
			return
		}
		e.wrData = 0
		e.state = stReadData

	default:
		// an ID field or junk; not the data mark we need
		e.collecting = false
	}
}

//
func (e *Engine) tickReadData() {

	if e.spendBudget(ST1{}, ST2{MissingDataMark: true}) {
		return
	}

	if !e.InByteReady {
		return
	}

	e.crc.Feed(e.InByte)
	size := e.sectorSize()

	if e.wrData < size {
		e.fifo = append(e.fifo, e.InByte)
		e.transferred++
		e.wrData++
		return
	}

	// trailing check bytes
	if e.wrData++; e.wrData < size+2 {
		return
	}

	if !e.crc.Good() {
		e.fail(ST1{DataError: true}, ST2{DataErrorInField: true})
		return
	}

	e.nextSector()
}

// nextSector advances to the following sector or terminates the
// transfer at end of track.
func (e *Engine) nextSector() {

	if e.reqSec >= e.endOfTrack {
		e.finish(NormalTermination, ST1{}, ST2{})
		return
	}

	e.reqSec++
	e.budget = e.cfg.HuntTimeout
	e.OutReadGate = true
	e.OutWriteGate = false
	e.state = stHuntID
}

/*
	tickWriteSector streams the write lead-in, sync marks, data mark,
	payload and check bytes through the write encoder. Payload bytes
	come from the host FIFO; running dry is an overrun.
*/
func (e *Engine) tickWriteSector() {

	if e.spendBudget(ST1{Overrun: true}, ST2{}) {
		return
	}

	if !e.InWriteNext {
		return
	}

	size := e.sectorSize()

	switch {

	case e.wrStage < writeLeadZeros:
		e.pushWrite(0x00, false)
		e.wrStage++

	case e.wrStage < writeLeadZeros+writeSyncMarks:
		if e.wrStage == writeLeadZeros {
			e.crc.Reset()
		}
		e.pushWrite(0xa1, true)
		e.crc.Feed(0xa1)
		e.wrStage++

	case e.wrStage == writeLeadZeros+writeSyncMarks:
		mark := byte(markData)
		if e.cmd.Op == OpWriteDeleted {
			mark = markDeletedData
		}
		e.pushWrite(mark, false)
		e.crc.Feed(mark)
		e.wrStage++

	case e.wrData < size:
		if len(e.fifo) == 0 {
			e.fail(ST1{Overrun: true}, ST2{})
			return
		}
		b := e.fifo[0]
		e.fifo = e.fifo[1:]
		e.pushWrite(b, false)
		e.crc.Feed(b)
		e.transferred++
		e.wrData++
		if e.wrData == size {
			e.wrCRC = e.crc.Value()
			e.wrStage++
		}

	case e.wrStage == writeLeadZeros+writeSyncMarks+2:
		e.pushWrite(byte(e.wrCRC>>8), false)
		e.wrStage++

	case e.wrStage == writeLeadZeros+writeSyncMarks+3:
		e.pushWrite(byte(e.wrCRC), false)
		e.wrStage++

	default:
		// one gap byte to flush, then the sector is on the medium
		e.pushWrite(0x4e, false)
		e.nextSector()
	}
}

//
func (e *Engine) pushWrite(b byte, mark bool) {
	e.OutWriteByte = b
	e.OutWriteMark = mark
	e.OutWriteStrobe = true
}

/*
	tickFormat writes one full track: for every sector, an ID field built
	from four caller-supplied bytes, then a data field filled with the
	fill byte. The caller's {C,H,R,N} records arrive through the FIFO.
*/
func (e *Engine) tickFormat() {

	if e.spendBudget(ST1{Overrun: true}, ST2{}) {
		return
	}

	if !e.InWriteNext {
		return
	}

	const idLead = writeLeadZeros + writeSyncMarks

	switch {

	case e.wrStage < writeLeadZeros:
		e.pushWrite(0x00, false)
		e.wrStage++

	case e.wrStage < idLead:
		if e.wrStage == writeLeadZeros {
			e.crc.Reset()
		}
		e.pushWrite(0xa1, true)
		e.crc.Feed(0xa1)
		e.wrStage++

	case e.wrStage == idLead:
		if len(e.fifo) < 4 {
			e.fail(ST1{Overrun: true}, ST2{})
			return
		}
		e.fmtRecord = []byte{e.fifo[0], e.fifo[1], e.fifo[2], e.fifo[3]}
		e.fifo = e.fifo[4:]
		e.lastRecord = IdentificationField{
			Cylinder: int(e.fmtRecord[0]),
			Head:     int(e.fmtRecord[1]),
			Sector:   int(e.fmtRecord[2]),
			SizeCode: int(e.fmtRecord[3]),
		}
		e.pushWrite(markID, false)
		e.crc.Feed(markID)
		e.wrStage++

	case e.wrStage < idLead+5:
		b := e.fmtRecord[e.wrStage-idLead-1]
		e.pushWrite(b, false)
		e.crc.Feed(b)
		if e.wrStage++; e.wrStage == idLead+5 {
			e.wrCRC = e.crc.Value()
		}

	case e.wrStage == idLead+5:
		e.pushWrite(byte(e.wrCRC>>8), false)
		e.wrStage++

	case e.wrStage == idLead+6:
		e.pushWrite(byte(e.wrCRC), false)
		e.wrStage++
		e.wrData = 0

	case e.wrStage < idLead+7+e.fmtGap:
		e.pushWrite(0x4e, false)
		e.wrStage++

	case e.wrStage < idLead+7+e.fmtGap+writeLeadZeros:
		e.pushWrite(0x00, false)
		e.wrStage++

	case e.wrStage < idLead+7+e.fmtGap+writeLeadZeros+writeSyncMarks:
		if e.wrStage == idLead+7+e.fmtGap+writeLeadZeros {
			e.crc.Reset()
		}
		e.pushWrite(0xa1, true)
		e.crc.Feed(0xa1)
		e.wrStage++

	case e.wrStage == idLead+7+e.fmtGap+writeLeadZeros+writeSyncMarks:
		e.pushWrite(markData, false)
		e.crc.Feed(markData)
		e.wrStage++

	case e.wrData < e.fmtSize:
		e.pushWrite(e.fmtFill, false)
		e.crc.Feed(e.fmtFill)
		if e.wrData++; e.wrData == e.fmtSize {
			e.wrCRC = e.crc.Value()
		}

	default:
		// data check bytes, then the next sector or done
		switch e.wrData - e.fmtSize {
		case 0:
			e.pushWrite(byte(e.wrCRC>>8), false)
			e.wrData++
		case 1:
			e.pushWrite(byte(e.wrCRC), false)
			e.wrData++
		default:
			e.pushWrite(0x4e, false)
			e.fmtDone++
			if e.fmtDone >= e.fmtCount {
				e.reqCyl = e.lastRecord.Cylinder
				e.reqHead = e.lastRecord.Head
				e.reqSec = e.lastRecord.Sector
				e.reqSize = e.lastRecord.SizeCode
				e.finish(NormalTermination, ST1{}, ST2{})
				return
			}
			e.wrStage = 0
			e.wrData = 0
			e.budget = e.cfg.HuntTimeout
		}
	}
}
