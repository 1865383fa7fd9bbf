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

// Command is a QIC-117 tape command, i.e. a latched head-movement pulse
// count. Valid commands are 1 through 48; CmdNone marks the absence of
// a command.
type Command int

const (
	CmdNone                 Command = 0
	CmdSoftReset            Command = 1
	CmdReportNextBit        Command = 2
	CmdPause                Command = 3
	CmdMicroStepPause       Command = 4
	CmdAlternateTimeout     Command = 5
	CmdReportStatus         Command = 6
	CmdReportErrorCode      Command = 7
	CmdReportDriveConfig    Command = 8
	CmdReportRomVersion     Command = 9
	CmdLogicalForward       Command = 10
	CmdPhysicalReverse      Command = 11
	CmdPhysicalForward      Command = 12
	CmdSeekHeadToTrack      Command = 13
	CmdSeekLoadPoint        Command = 14
	CmdEnterFormatMode      Command = 15
	CmdWriteReferenceBurst  Command = 16
	CmdEnterVerifyMode      Command = 17
	CmdStopTape             Command = 18
	CmdMicroStepHeadUp      Command = 21
	CmdMicroStepHeadDown    Command = 22
	CmdSkipSegmentsReverse  Command = 25
	CmdSkipSegmentsForward  Command = 26
	CmdSelectRate           Command = 27
	CmdEnterDiagnostic1     Command = 28
	CmdEnterDiagnostic2     Command = 29
	CmdEnterPrimaryMode     Command = 30
	CmdReportVendorID       Command = 32
	CmdReportTapeStatus     Command = 33
	CmdSkipExtendedReverse  Command = 34
	CmdSkipExtendedForward  Command = 35
	CmdCalibrateTapeLength  Command = 36
	CmdReportFormatSegments Command = 37
	CmdSetFormatSegments    Command = 38
	CmdNewCartridge         Command = 40
	CmdReportModelID        Command = 41
	CmdSeekEndOfTape        Command = 42
	CmdSkipFileMarksForward Command = 43
	CmdSkipFileMarksReverse Command = 44
	CmdRetension            Command = 45
	CmdPhantomSelect        Command = 46
	CmdPhantomDeselect      Command = 47
	CmdEject                Command = 48
)

// the valid pulse count range
const (
	MinCommand = 1
	MaxCommand = 48
)

//
var commandNames = map[Command]string{
	CmdSoftReset:            "soft reset",
	CmdReportNextBit:        "report next bit",
	CmdPause:                "pause",
	CmdMicroStepPause:       "micro step pause",
	CmdAlternateTimeout:     "alternate timeout",
	CmdReportStatus:         "report status",
	CmdReportErrorCode:      "report error code",
	CmdReportDriveConfig:    "report drive config",
	CmdReportRomVersion:     "report rom version",
	CmdLogicalForward:       "logical forward",
	CmdPhysicalReverse:      "physical reverse",
	CmdPhysicalForward:      "physical forward",
	CmdSeekHeadToTrack:      "seek head to track",
	CmdSeekLoadPoint:        "seek load point",
	CmdEnterFormatMode:      "enter format mode",
	CmdWriteReferenceBurst:  "write reference burst",
	CmdEnterVerifyMode:      "enter verify mode",
	CmdStopTape:             "stop tape",
	CmdMicroStepHeadUp:      "micro step head up",
	CmdMicroStepHeadDown:    "micro step head down",
	CmdSkipSegmentsReverse:  "skip segments reverse",
	CmdSkipSegmentsForward:  "skip segments forward",
	CmdSelectRate:           "select rate",
	CmdEnterDiagnostic1:     "enter diagnostic mode 1",
	CmdEnterDiagnostic2:     "enter diagnostic mode 2",
	CmdEnterPrimaryMode:     "enter primary mode",
	CmdReportVendorID:       "report vendor id",
	CmdReportTapeStatus:     "report tape status",
	CmdSkipExtendedReverse:  "skip extended reverse",
	CmdSkipExtendedForward:  "skip extended forward",
	CmdCalibrateTapeLength:  "calibrate tape length",
	CmdReportFormatSegments: "report format segments",
	CmdSetFormatSegments:    "set format segments",
	CmdNewCartridge:         "new cartridge",
	CmdReportModelID:        "report model id",
	CmdSeekEndOfTape:        "seek end of tape",
	CmdSkipFileMarksForward: "skip file marks forward",
	CmdSkipFileMarksReverse: "skip file marks reverse",
	CmdRetension:            "retension",
	CmdPhantomSelect:        "phantom select",
	CmdPhantomDeselect:      "phantom deselect",
	CmdEject:                "eject",
}

//
func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "<unknown>"
}

/*
	Decode classifies a latched pulse count. Counts outside 1 through 48
	are invalid and must be ignored by consumers; reserved codes inside
	the range decode to a command without a name and are likewise
	ignored by the drive model.
*/
func Decode(count int) (Command, bool) {
	if count < MinCommand || count > MaxCommand {
		return CmdNone, false
	}
	return Command(count), true
}

// IsSeek reports whether the command starts a positioning run to a
// known tape point.
func (c Command) IsSeek() bool {
	switch c {
	case CmdSeekLoadPoint, CmdSeekEndOfTape, CmdSeekHeadToTrack:
		return true
	}
	return false
}

//
func (c Command) IsSkip() bool {
	switch c {
	case CmdSkipSegmentsReverse, CmdSkipSegmentsForward,
		CmdSkipExtendedReverse, CmdSkipExtendedForward,
		CmdSkipFileMarksForward, CmdSkipFileMarksReverse:
		return true
	}
	return false
}

// IsMotion reports whether the command sets the tape in motion.
func (c Command) IsMotion() bool {
	switch c {
	case CmdLogicalForward, CmdPhysicalForward, CmdPhysicalReverse,
		CmdRetension, CmdCalibrateTapeLength, CmdWriteReferenceBurst:
		return true
	}
	return c.IsSeek() || c.IsSkip()
}

//
func (c Command) IsStatus() bool {
	switch c {
	case CmdReportNextBit, CmdReportStatus, CmdReportErrorCode,
		CmdReportDriveConfig, CmdReportRomVersion, CmdReportVendorID,
		CmdReportTapeStatus, CmdReportFormatSegments, CmdReportModelID:
		return true
	}
	return false
}

//
func (c Command) IsConfig() bool {
	switch c {
	case CmdAlternateTimeout, CmdSelectRate, CmdSetFormatSegments,
		CmdEnterFormatMode, CmdEnterVerifyMode, CmdEnterPrimaryMode,
		CmdEnterDiagnostic1, CmdEnterDiagnostic2, CmdPhantomSelect,
		CmdPhantomDeselect:
		return true
	}
	return false
}
