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

//
func NewDetect() *Detect {

	d := &Detect{}
	d.Runner = *NewRunner(
		"detect [-a|--address {address}]",
		"tape drive detection command",
		`Use the detect command to run the QIC-117 drive identification sequence on the
daemon and print the result.`,
		"", runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	return d
}

//
type Detect struct {
	Runner
}

//
func (d *Detect) Run() error {
	d.ParseSettings()
	return d.printAPIResult("PUT", "/detect?wait=true")
}
