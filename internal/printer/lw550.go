package printer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tomgalvin.uk/labelle/internal/bitmap"
)

type PrintStatus byte

const (
	PrintIdle PrintStatus = iota
	Printing
	PrintError
	PrintCancel
	PrintBusy
	PrintUnlock
)

type MainBayStatus byte

const (
	BayUnknown MainBayStatus = iota
	BayOpen
	BayNoMedia
	BayMediaMisinserted
	BayMediaUnknown
	BayMediaEmpty
	BayMediaCriticallyLow
	BayMediaLow
	BayMediaOK
	BayMediaJammed
	BayMediaCounterfeit
)

const engineStatusLength = 32

// EngineStatus is the reply to a LabelWriter status request.
type EngineStatus struct {
	Print          PrintStatus
	JobID          uint32
	LabelIndex     uint16
	HeadOverheated bool
	DensityPercent byte
	MainBay        MainBayStatus
	SKU            string
	ErrorID        uint32
	LabelCount     uint16
}

func decodeEngineStatus(d []byte) (EngineStatus, error) {
	if len(d) < engineStatusLength {
		return EngineStatus{}, fmt.Errorf("Status reply too short: %d bytes", len(d))
	}
	return EngineStatus{
		Print:          PrintStatus(d[0]),
		JobID:          binary.LittleEndian.Uint32(d[1:5]),
		LabelIndex:     binary.LittleEndian.Uint16(d[5:7]),
		HeadOverheated: d[8] == 1,
		DensityPercent: d[9],
		MainBay:        MainBayStatus(d[10]),
		SKU:            strings.TrimRight(string(bytes.TrimRight(d[11:23], "\x00")), " "),
		ErrorID:        binary.LittleEndian.Uint32(d[23:27]),
		LabelCount:     binary.LittleEndian.Uint16(d[27:29]),
	}, nil
}

// Problem describes why the printer can't print, or returns "" if it can.
func (s EngineStatus) Problem() string {
	switch s.MainBay {
	case BayOpen:
		return "media bay open"
	case BayNoMedia:
		return "no labels loaded"
	case BayMediaMisinserted:
		return "label roll not inserted properly"
	case BayMediaEmpty:
		return "label roll empty"
	case BayMediaJammed:
		return "labels jammed"
	case BayMediaCounterfeit:
		return "unsupported label roll"
	}
	if s.HeadOverheated {
		return "print head overheated"
	}
	switch s.Print {
	case PrintError:
		return fmt.Sprintf("printer error %d", s.ErrorID)
	case PrintCancel:
		return "job cancelled on the printer"
	}
	return ""
}

// LW550 speaks the LabelWriter 550 job protocol. The whole label is sent as
// one raster after a job header.
type LW550 struct {
	JobID        uint32
	PollInterval time.Duration
	PollAttempts int
}

func NewLW550(jobID uint32) *LW550 {
	return &LW550{
		JobID:        jobID,
		PollInterval: defaultPollInterval,
		PollAttempts: defaultPollAttempts,
	}
}

func (l *LW550) status(ctx context.Context, port Port) (EngineStatus, error) {
	if err := port.Write(ctx, requestEngineStatus()); err != nil {
		return EngineStatus{}, fmt.Errorf("Couldn't request printer status:\n%w", err)
	}
	resp, err := port.Read(ctx)
	if err != nil {
		return EngineStatus{}, fmt.Errorf("Couldn't read printer status:\n%w", err)
	}
	return decodeEngineStatus(resp)
}

// printJob builds the frames for a single label job.
func (l *LW550) printJob(b bitmap.Bitmap) []byte {
	lines := bitmap.PackColumns(b, bitmap.MSBFirst)
	data := make([]byte, 0, len(lines)*((b.Height()+7)/8))
	for _, line := range lines {
		data = append(data, line...)
	}

	job := startOfPrintJob(l.JobID)
	job = append(job, selectGraphicsMode()...)
	job = append(job, setLabelIndex(0)...)
	job = append(job, labelPrintData(uint32(len(lines)), uint32(b.Height()), data)...)
	job = append(job, feedToTearPosition()...)
	return append(job, endOfPrintJob()...)
}

func (l *LW550) Stream(ctx context.Context, port Port, b bitmap.Bitmap) error {
	s, err := l.status(ctx, port)
	if err != nil {
		return err
	}
	if problem := s.Problem(); problem != "" {
		return &AbortError{Reason: problem}
	}
	slog.Debug("Streaming label", "protocol", "lw550", "job", l.JobID, "sku", s.SKU, "labelsLeft", s.LabelCount)

	if err := port.Write(ctx, l.printJob(b)); err != nil {
		return fmt.Errorf("Couldn't write label data:\n%w", err)
	}
	return nil
}

func (l *LW550) Acknowledge(ctx context.Context, port Port) error {
	return poll(ctx, l.PollInterval, l.PollAttempts, func() (bool, error) {
		s, err := l.status(ctx, port)
		if err != nil {
			return false, err
		}
		if problem := s.Problem(); problem != "" {
			return false, &AbortError{Reason: problem}
		}
		return s.Print == PrintIdle, nil
	})
}
