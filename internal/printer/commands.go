// This file implements the command byte sequences understood by DYMO
// LabelManager (d1) and LabelWriter 550 printers.
package printer

import (
	"encoding/binary"
)

// Control characters
const (
	Esc = 0x1B
	Syn = 0x16
)

// Sets the tape colour, 0 being the default.
func setTapeColour(colour byte) []byte {
	return []byte{Esc, 'C', colour}
}

// Sets how many bytes each following print line carries. The printer keeps
// this value until it is set again.
func setBytesPerLine(n byte) []byte {
	return []byte{Esc, 'D', n}
}

// Prints one column of the label. The first byte holds the top eight dots,
// least significant bit first.
func printLine(line []byte) []byte {
	return append([]byte{Syn}, line...)
}

// Asks a LabelManager for its one byte status.
func requestStatus() []byte {
	return []byte{Esc, 'A'}
}

// Starts a LabelWriter print job. The same id comes back in status replies.
func startOfPrintJob(jobID uint32) []byte {
	return binary.LittleEndian.AppendUint32([]byte{Esc, 's'}, jobID)
}

// Switches the LabelWriter to raster graphics.
func selectGraphicsMode() []byte {
	return []byte{Esc, 'i'}
}

// Sets the index of the label about to be sent within the job.
func setLabelIndex(index uint16) []byte {
	return binary.LittleEndian.AppendUint16([]byte{Esc, 'n'}, index)
}

// Header and data of one label. width is the number of lines (the label
// length), height the dots per line. Data is one bit per dot, 1 bpp with
// alignment 2.
func labelPrintData(width, height uint32, data []byte) []byte {
	d := []byte{Esc, 'D', 0x01, 0x02}
	d = binary.BigEndian.AppendUint32(d, width)
	d = binary.BigEndian.AppendUint32(d, height)
	return append(d, data...)
}

// Feeds the last label of a job out to the tear bar.
func feedToTearPosition() []byte {
	return []byte{Esc, 'E'}
}

func endOfPrintJob() []byte {
	return []byte{Esc, 'Q'}
}

// Asks a LabelWriter for its 32 byte print engine status without taking the
// host lock.
func requestEngineStatus() []byte {
	return []byte{Esc, 'A', 0x00}
}
