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

package signal

// CRC-16/CCITT as used for ID and data fields: polynomial 0x1021,
// seed 0xffff, most significant bit first.
const crcPoly = 0x1021
const crcSeed = 0xffff

/*
	CRC16 is the streaming check code over assembled bytes. It does no
	framing; the caller reseeds it at the start of a field and decides
	when the trailing two bytes are the check value. Feeding a sequence
	followed by its own big-endian CRC leaves a zero remainder.
*/
type CRC16 struct {
	crc    uint16
	seeded bool
}

// Reset reseeds the engine for a new field.
func (c *CRC16) Reset() {
	c.crc = crcSeed
	c.seeded = true
}

// Feed folds one byte into the running value.
func (c *CRC16) Feed(b byte) {

	if !c.seeded {
		return
	}

	c.crc ^= uint16(b) << 8

	for bit := 0; bit < 8; bit++ {
		if c.crc&0x8000 != 0 {
			c.crc = c.crc<<1 ^ crcPoly
		} else {
			c.crc <<= 1
		}
	}
}

// FeedAll folds a byte sequence into the running value.
func (c *CRC16) FeedAll(data []byte) {
	for _, b := range data {
		c.Feed(b)
	}
}

//
func (c *CRC16) Value() uint16 {
	return c.crc
}

// Good reports whether the remainder is zero, i.e. the check bytes at
// the end of the field matched the running computation.
func (c *CRC16) Good() bool {
	return c.seeded && c.crc == 0
}

// Valid reports whether the engine has been seeded at all.
func (c *CRC16) Valid() bool {
	return c.seeded
}

// Sum computes the check value of a byte sequence in one go, with the
// standard seed.
func Sum(data []byte) uint16 {
	var c CRC16
	c.Reset()
	c.FeedAll(data)
	return c.Value()
}
