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

package main

import (
	"fmt"
	"os"

	"github.com/retroflux/driveback/pkg/run"
)

//
var DrivebackVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: dbackctl {serve|detect|status|version} ...

run 'dbackctl {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nDriveback %s\n\n", DrivebackVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "detect":
		run.DieOnError(run.NewDetect().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}
