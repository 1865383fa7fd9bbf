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

// samples needed before the analyzer commits to a recommendation
const defaultMinSamples = 8

/*
	TrackWidthAnalyzer compares the cylinder numbers recovered from
	validated ID fields against the physical head position. When the
	recovered cylinder consistently reads as half the physical track, the
	medium is 40-track stock in an 80-track mechanism and double stepping
	is recommended. Samples at physical track zero are ambiguous and kept
	out of the tally.
*/
type TrackWidthAnalyzer struct {
	MinSamples int

	enabled   bool
	samples   int
	halfTally int
	complete  bool
	recommend bool
}

//
func NewTrackWidthAnalyzer() *TrackWidthAnalyzer {
	return &TrackWidthAnalyzer{MinSamples: defaultMinSamples, enabled: true}
}

//
func (a *TrackWidthAnalyzer) SetEnabled(on bool) {
	a.enabled = on
	if !on {
		a.Reset()
	}
}

//
func (a *TrackWidthAnalyzer) Reset() {
	a.samples = 0
	a.halfTally = 0
	a.complete = false
	a.recommend = false
}

// Observe feeds one validated ID field cylinder together with the
// physical track it was read from.
func (a *TrackWidthAnalyzer) Observe(cylinder, physical int) {

	if !a.enabled || a.complete || physical == 0 {
		return
	}

	a.samples++
	if cylinder == physical/2 && cylinder != physical {
		a.halfTally++
	} else if cylinder != physical {
		// neither narrow nor matching stock, distrust the run so far
		a.samples = 0
		a.halfTally = 0
		return
	}

	min := a.MinSamples
	if min <= 0 {
		min = defaultMinSamples
	}

	if a.samples >= min {
		if a.halfTally == a.samples {
			a.complete = true
			a.recommend = true
		} else if a.halfTally == 0 {
			a.complete = true
			a.recommend = false
		}
		// mixed runs keep sampling
	}
}

// Complete reports whether enough consistent samples were seen.
func (a *TrackWidthAnalyzer) Complete() bool {
	return a.complete
}

// Recommended reports whether double stepping should be used. Only
// meaningful once Complete is true.
func (a *TrackWidthAnalyzer) Recommended() bool {
	return a.recommend
}
