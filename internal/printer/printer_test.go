package printer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"strings"
	"testing"
	"time"

	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/device"
)

var errCablePulled = errors.New("cable pulled")

type fakePort struct {
	writes    [][]byte
	responses [][]byte
	// Returned once responses run out.
	fallback  []byte
	failWrite int
	failRead  int
	failErr   error
	reads     int
	closed    int
}

func (f *fakePort) err() error {
	if f.failErr != nil {
		return f.failErr
	}
	return errCablePulled
}

func (f *fakePort) Write(_ context.Context, d []byte) error {
	if f.failWrite > 0 && len(f.writes)+1 == f.failWrite {
		return f.err()
	}
	f.writes = append(f.writes, append([]byte{}, d...))
	return nil
}

func (f *fakePort) Read(context.Context) ([]byte, error) {
	f.reads++
	if f.failRead > 0 && f.reads == f.failRead {
		return nil, f.err()
	}
	if len(f.responses) > 0 {
		r := f.responses[0]
		f.responses = f.responses[1:]
		return r, nil
	}
	return f.fallback, nil
}

func (f *fakePort) Close() error {
	f.closed++
	return nil
}

type fakeOpener struct {
	port   *fakePort
	err    error
	opened int
	at     Location
}

func (o *fakeOpener) Open(_ context.Context, _ device.Profile, at Location) (Port, error) {
	o.opened++
	o.at = at
	if o.err != nil {
		return nil, o.err
	}
	return o.port, nil
}

func aRandomBitmap(width, height int) *bitmap.PixelBitmap {
	b := bitmap.New(width, height)
	for y := range height {
		for x := range width {
			b.SetBit(x, y, byte(rand.IntN(2)))
		}
	}
	return b
}

func aD1Profile() device.Profile {
	return device.Profile{Model: "test-d1", Name: "Test", VendorID: device.VendorDymo, ProductID: 0x1002, HeadHeightPx: 64, Variant: device.VariantD1}
}

func aPrinter(opener Opener) *Printer {
	return New(slog.Default(), opener)
}

func fastD1() *D1 {
	d := NewD1()
	d.PollInterval = time.Millisecond
	return d
}

type d1Trace struct {
	lines          [][]byte
	colours        int
	lineLengths    int
	statusRequests int
}

// decodeD1 parses everything written to a d1 printer back into lines.
func decodeD1(t *testing.T, writes [][]byte) d1Trace {
	t.Helper()
	var stream []byte
	for _, w := range writes {
		stream = append(stream, w...)
	}

	var tr d1Trace
	bytesPerLine := -1
	for i := 0; i < len(stream); {
		switch {
		case stream[i] == Syn:
			if bytesPerLine < 0 {
				t.Fatalf("Line at byte %d sent before its length", i)
			}
			tr.lines = append(tr.lines, stream[i+1:i+1+bytesPerLine])
			i += 1 + bytesPerLine
		case stream[i] == Esc && stream[i+1] == 'A':
			tr.statusRequests++
			i += 2
		case stream[i] == Esc && stream[i+1] == 'C':
			tr.colours++
			i += 3
		case stream[i] == Esc && stream[i+1] == 'D':
			bytesPerLine = int(stream[i+2])
			tr.lineLengths++
			i += 3
		default:
			t.Fatalf("Unexpected byte %#02x at %d", stream[i], i)
		}
	}
	return tr
}

func assertBitmapsIdentical(t *testing.T, b1, b2 bitmap.Bitmap) {
	t.Helper()
	if !bitmap.Equal(b1, b2) {
		t.Fatalf("Bitmaps differ: %v and %v", b1, b2)
	}
}

func TestPrintD1(t *testing.T) {
	port := &fakePort{fallback: []byte{0x00}}
	opener := &fakeOpener{port: port}
	b := aRandomBitmap(10, 64)

	if err := aPrinter(opener).Print(context.Background(), aD1Profile(), b); err != nil {
		t.Fatal(err)
	}

	if port.closed != 1 {
		t.Errorf("Port closed %d times", port.closed)
	}
	tr := decodeD1(t, port.writes)
	if tr.colours != 1 {
		t.Errorf("Tape colour set %d times", tr.colours)
	}
	// one before the data, one after it and one to acknowledge
	if tr.statusRequests != 3 {
		t.Errorf("Expected 3 status requests, got %d", tr.statusRequests)
	}
	assertBitmapsIdentical(t, bitmap.UnpackColumns(tr.lines, 64, bitmap.LSBFirst), b)
}

func TestDeviceSink(t *testing.T) {
	port := &fakePort{fallback: []byte{0x00}}
	sink := &DeviceSink{Printer: aPrinter(&fakeOpener{port: port}), Profile: aD1Profile()}
	b := aRandomBitmap(3, 64)

	if err := sink.Output(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	assertBitmapsIdentical(t, bitmap.UnpackColumns(decodeD1(t, port.writes).lines, 64, bitmap.LSBFirst), b)
}

func TestD1FirstByteIsTopRows(t *testing.T) {
	b := bitmap.New(1, 16)
	b.SetBit(0, 0, 1)
	b.SetBit(0, 9, 1)
	port := &fakePort{fallback: []byte{0x00}}

	if err := fastD1().Stream(context.Background(), port, b); err != nil {
		t.Fatal(err)
	}
	tr := decodeD1(t, port.writes)
	if !bytes.Equal(tr.lines[0], []byte{0x01, 0x02}) {
		t.Errorf("Unexpected line bytes %x", tr.lines[0])
	}
}

func TestD1Chunking(t *testing.T) {
	tests := []struct {
		width, segments, statusRequests int
	}{
		// 64 + 64 + 2 lines, each chunk preceded by a status request
		{130, 1, 4},
		{201, 1, 5},
		// 200 + 200 + 50
		{450, 3, 5 + 5 + 2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprint(test.width), func(t *testing.T) {
			port := &fakePort{fallback: []byte{0x00}}
			b := aRandomBitmap(test.width, 32)

			if err := fastD1().Stream(context.Background(), port, b); err != nil {
				t.Fatal(err)
			}
			tr := decodeD1(t, port.writes)
			if tr.colours != test.segments {
				t.Errorf("Expected %d segments, got %d", test.segments, tr.colours)
			}
			if tr.statusRequests != test.statusRequests {
				t.Errorf("Expected %d status requests, got %d", test.statusRequests, tr.statusRequests)
			}
			assertBitmapsIdentical(t, bitmap.UnpackColumns(tr.lines, 32, bitmap.LSBFirst), b)
		})
	}
}

func TestD1SetsLineLengthOnce(t *testing.T) {
	port := &fakePort{fallback: []byte{0x00}}
	if err := fastD1().Stream(context.Background(), port, aRandomBitmap(450, 64)); err != nil {
		t.Fatal(err)
	}
	if tr := decodeD1(t, port.writes); tr.lineLengths != 1 {
		t.Errorf("Line length sent %d times", tr.lineLengths)
	}
}

func TestD1StatusErrors(t *testing.T) {
	tests := []struct {
		status byte
		reason string
	}{
		{0x20, "tape"},
		{0x40, "jammed"},
		{0x80, "error"},
	}
	for _, test := range tests {
		t.Run(test.reason, func(t *testing.T) {
			port := &fakePort{fallback: []byte{test.status}}
			err := fastD1().Stream(context.Background(), port, aRandomBitmap(4, 64))

			var abort *AbortError
			if !errors.As(err, &abort) || !strings.Contains(abort.Reason, test.reason) {
				t.Fatalf("Expected an abort mentioning %q, got %v", test.reason, err)
			}
			if !errors.Is(err, ErrPrintAborted) || IsRetryable(err) {
				t.Errorf("Unexpected error classification for %v", err)
			}
		})
	}
}

func TestD1AcknowledgeRequiresAReply(t *testing.T) {
	port := &fakePort{}
	d := fastD1()
	d.PollAttempts = 3

	err := d.Acknowledge(context.Background(), port)
	if !errors.Is(err, ErrPrintAborted) {
		t.Fatalf("Expected ErrPrintAborted, got %v", err)
	}
	if port.reads != 3 {
		t.Errorf("Expected 3 polls, got %d", port.reads)
	}

	port = &fakePort{responses: [][]byte{{}, {}, {0x00}}}
	if err := d.Acknowledge(context.Background(), port); err != nil {
		t.Errorf("Expected the third reply to complete the job, got %v", err)
	}
}

func TestSessionReleasesDeviceExactlyOnce(t *testing.T) {
	// 130 columns: 5 status reads and 8 writes on the happy path
	type failure struct {
		name        string
		write, read int
	}
	var failures []failure
	for i := 1; i <= 8; i++ {
		failures = append(failures, failure{fmt.Sprintf("write %d", i), i, 0})
	}
	for i := 1; i <= 5; i++ {
		failures = append(failures, failure{fmt.Sprintf("read %d", i), 0, i})
	}

	for _, f := range failures {
		t.Run(f.name, func(t *testing.T) {
			port := &fakePort{fallback: []byte{0x00}, failWrite: f.write, failRead: f.read}
			pr := aPrinter(&fakeOpener{port: port})
			s := pr.NewSession(aD1Profile(), fastD1())

			err := s.Run(context.Background(), aRandomBitmap(130, 64))
			if !errors.Is(err, errCablePulled) {
				t.Fatalf("Expected the injected failure, got %v", err)
			}
			if port.closed != 1 {
				t.Errorf("Port closed %d times", port.closed)
			}
			if s.State() != Errored {
				t.Errorf("Session ended %s", s.State())
			}
			release, err := pr.locks.TryAcquire(aD1Profile().Model)
			if err != nil {
				t.Fatalf("Device still locked: %v", err)
			}
			release()
		})
	}
}

func TestSessionSuccessCloses(t *testing.T) {
	port := &fakePort{fallback: []byte{0x00}}
	s := aPrinter(&fakeOpener{port: port}).NewSession(aD1Profile(), fastD1())
	if err := s.Run(context.Background(), aRandomBitmap(130, 64)); err != nil {
		t.Fatal(err)
	}
	if s.State() != Closed || port.closed != 1 {
		t.Errorf("Session %s, port closed %d times", s.State(), port.closed)
	}
	if err := s.Run(context.Background(), aRandomBitmap(1, 64)); err == nil {
		t.Error("Expected a finished session to refuse another run")
	}
}

func TestOpenFailures(t *testing.T) {
	p := aD1Profile()
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", fmt.Errorf("%w: no %s attached", ErrDeviceNotFound, p), func(err error) bool {
			return errors.Is(err, ErrDeviceNotFound)
		}},
		{"permission", &PermissionError{Device: p, Hint: AccessHint(p)}, func(err error) bool {
			var pe *PermissionError
			return errors.As(err, &pe) && pe.Hint != "" && errors.Is(err, ErrInsufficientPermission)
		}},
		{"timeout", fmt.Errorf("%w: opening", ErrTimeout), func(err error) bool {
			return errors.Is(err, ErrDeviceBusy) && IsRetryable(err)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pr := aPrinter(&fakeOpener{err: test.err})
			err := pr.Print(context.Background(), p, aRandomBitmap(4, 64))
			if !test.check(err) {
				t.Fatalf("Unexpected error %v", err)
			}
			release, err := pr.locks.TryAcquire(p.Model)
			if err != nil {
				t.Fatalf("Device still locked: %v", err)
			}
			release()
		})
	}
}

func TestSecondSessionFailsFast(t *testing.T) {
	opener := &fakeOpener{port: &fakePort{fallback: []byte{0x00}}}
	pr := aPrinter(opener)
	p := aD1Profile()

	release, err := pr.locks.TryAcquire(p.Model)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	err = pr.Print(context.Background(), p, aRandomBitmap(4, 64))
	if !errors.Is(err, ErrDeviceBusy) || !IsRetryable(err) {
		t.Fatalf("Expected a retryable ErrDeviceBusy, got %v", err)
	}
	if opener.opened != 0 {
		t.Error("Busy device was opened anyway")
	}
}

func TestStreamTimeoutAborts(t *testing.T) {
	port := &fakePort{fallback: []byte{0x00}, failWrite: 2, failErr: fmt.Errorf("%w: write", ErrTimeout)}
	err := aPrinter(&fakeOpener{port: port}).NewSession(aD1Profile(), fastD1()).Run(context.Background(), aRandomBitmap(4, 64))
	if !errors.Is(err, ErrPrintAborted) || IsRetryable(err) {
		t.Fatalf("Expected a timeout to abort the print, got %v", err)
	}
}

// cancelOnWrite cancels the print's context on the first write.
type cancelOnWrite struct {
	*fakePort
	cancel context.CancelFunc
}

func (c *cancelOnWrite) Write(ctx context.Context, d []byte) error {
	c.cancel()
	return c.fakePort.Write(ctx, d)
}

func (c *cancelOnWrite) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fakePort.Read(ctx)
}

type portOpener struct {
	port Port
}

func (o portOpener) Open(context.Context, device.Profile, Location) (Port, error) {
	return o.port, nil
}

func TestCancelAfterOpenFinishesTheLabel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// a few empty replies make the acknowledgement wait between polls
	port := &cancelOnWrite{fakePort: &fakePort{responses: [][]byte{{0x00}, {0x00}, {0x00}, {}, {}, {}}, fallback: []byte{0x00}}, cancel: cancel}
	b := aRandomBitmap(130, 64)

	s := aPrinter(portOpener{port: port}).NewSession(aD1Profile(), fastD1())
	if err := s.Run(ctx, b); err != nil {
		t.Fatalf("Expected the label to finish after cancelling, got %v", err)
	}
	if s.State() != Closed {
		t.Errorf("Session ended %s", s.State())
	}
	assertBitmapsIdentical(t, bitmap.UnpackColumns(decodeD1(t, port.writes).lines, 64, bitmap.LSBFirst), b)
}

func TestCancelBeforeOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opener := &cancelledOpener{}

	err := aPrinter(opener).Print(ctx, aD1Profile(), aRandomBitmap(4, 64))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation before opening, got %v", err)
	}
}

type cancelledOpener struct{}

func (cancelledOpener) Open(ctx context.Context, _ device.Profile, _ Location) (Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fakePort{fallback: []byte{0x00}}, nil
}

func TestLocksPerPhysicalDevice(t *testing.T) {
	pr := aPrinter(&fakeOpener{port: &fakePort{fallback: []byte{0x00}}})
	p := aD1Profile()
	first := Location{Bus: 1, Address: 4}

	release, err := pr.locks.TryAcquire(lockKey(p, first))
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if err := pr.PrintAt(context.Background(), p, Location{Bus: 1, Address: 5}, aRandomBitmap(4, 64)); err != nil {
		t.Errorf("Second printer of the same model was blocked: %v", err)
	}
	if err := pr.PrintAt(context.Background(), p, first, aRandomBitmap(4, 64)); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("Expected the held printer to be busy, got %v", err)
	}
}

func TestDeviceSinkLocation(t *testing.T) {
	opener := &fakeOpener{port: &fakePort{fallback: []byte{0x00}}}
	at := Location{BLEAddress: "C8:47:8C:00:11:22"}
	sink := &DeviceSink{Printer: aPrinter(opener), Profile: aD1Profile(), At: at}

	if err := sink.Output(context.Background(), aRandomBitmap(2, 64)); err != nil {
		t.Fatal(err)
	}
	if opener.at != at {
		t.Errorf("Opened %s, expected %s", opener.at, at)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in       string
		expected Location
		fails    bool
	}{
		{"", Location{}, false},
		{"1:4", Location{Bus: 1, Address: 4}, false},
		{"usb:3:12", Location{Bus: 3, Address: 12}, false},
		{"C8:47:8C:00:11:22", Location{BLEAddress: "C8:47:8C:00:11:22"}, false},
		{"ble:C8:47:8C:00:11:22", Location{BLEAddress: "C8:47:8C:00:11:22"}, false},
		{"x:4", Location{}, true},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			at, err := ParseLocation(test.in)
			if (err != nil) != test.fails {
				t.Fatalf("Unexpected error %v", err)
			}
			if !test.fails && at != test.expected {
				t.Errorf("Parsed %+v, expected %+v", at, test.expected)
			}
		})
	}
}

// silentCharacteristic never answers reads.
type silentCharacteristic struct {
	written [][]byte
	block   chan struct{}
}

func (c *silentCharacteristic) WriteWithoutResponse(p []byte) (int, error) {
	c.written = append(c.written, append([]byte{}, p...))
	return len(p), nil
}

func (c *silentCharacteristic) Read([]byte) (int, error) {
	<-c.block
	return 0, nil
}

func TestBluetoothReadTimesOut(t *testing.T) {
	c := &silentCharacteristic{block: make(chan struct{})}
	defer close(c.block)
	port := &BluetoothPort{writer: c, reader: c, disconnect: func() error { return nil }, chunkSize: 498, timeout: 10 * time.Millisecond}

	if err := port.Write(context.Background(), requestStatus()); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err := port.Read(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Read took %s", time.Since(start))
	}

	s := aPrinter(portOpener{port: port}).NewSession(aD1Profile(), fastD1())
	if err := s.Run(context.Background(), aRandomBitmap(4, 64)); !errors.Is(err, ErrPrintAborted) {
		t.Errorf("Expected a silent printer to abort the print, got %v", err)
	}
}

func TestScanMatch(t *testing.T) {
	p := device.Profile{Model: "letratag-200b", Transport: device.TransportBLE, BLENamePrefix: "Letratag"}
	if !scanMatch(p, Location{}, "Letratag 1234", "AA:BB") {
		t.Error("Expected a match on the name prefix")
	}
	if scanMatch(p, Location{}, "Speaker", "AA:BB") {
		t.Error("Unexpected match on another device")
	}
	at := Location{BLEAddress: "aa:bb"}
	if !scanMatch(p, at, "Letratag 1234", "AA:BB") || scanMatch(p, at, "Letratag 5678", "CC:DD") {
		t.Error("Expected an address to pick one printer")
	}
}

func TestLocks(t *testing.T) {
	l := NewLocks()
	release, err := l.TryAcquire("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryAcquire("a"); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("Expected ErrDeviceBusy, got %v", err)
	}
	other, err := l.TryAcquire("b")
	if err != nil {
		t.Fatalf("Locks on different devices interfered: %v", err)
	}
	other()

	release()
	release()
	again, err := l.TryAcquire("a")
	if err != nil {
		t.Fatalf("Couldn't reacquire after release: %v", err)
	}
	again()
}

func anEngineStatus(print PrintStatus, bay MainBayStatus) []byte {
	d := make([]byte, engineStatusLength)
	d[0] = byte(print)
	binary.LittleEndian.PutUint32(d[1:5], 42)
	d[9] = 100
	d[10] = byte(bay)
	copy(d[11:23], "S0722540")
	binary.LittleEndian.PutUint16(d[27:29], 318)
	return d
}

func TestDecodeEngineStatus(t *testing.T) {
	s, err := decodeEngineStatus(anEngineStatus(Printing, BayMediaOK))
	if err != nil {
		t.Fatal(err)
	}
	expected := EngineStatus{Print: Printing, JobID: 42, DensityPercent: 100, MainBay: BayMediaOK, SKU: "S0722540", LabelCount: 318}
	if s != expected {
		t.Errorf("Decoded %+v, expected %+v", s, expected)
	}
	if _, err := decodeEngineStatus(make([]byte, 4)); err == nil {
		t.Error("Expected a short reply to fail")
	}
}

func fastLW550() *LW550 {
	l := NewLW550(42)
	l.PollInterval = time.Millisecond
	return l
}

func TestPrintLW550(t *testing.T) {
	port := &fakePort{responses: [][]byte{
		anEngineStatus(PrintIdle, BayMediaOK),
		anEngineStatus(Printing, BayMediaOK),
		anEngineStatus(PrintIdle, BayMediaOK),
	}}
	p := device.Profile{Model: "test-lw", HeadHeightPx: 16, Variant: device.VariantLW550}
	b := aRandomBitmap(20, 16)

	err := aPrinter(&fakeOpener{port: port}).NewSession(p, fastLW550()).Run(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if len(port.writes) != 4 {
		t.Fatalf("Expected 4 writes, got %d", len(port.writes))
	}

	job := port.writes[1]
	header := []byte{
		Esc, 's', 42, 0, 0, 0,
		Esc, 'i',
		Esc, 'n', 0, 0,
		Esc, 'D', 1, 2, 0, 0, 0, 20, 0, 0, 0, 16,
	}
	if !bytes.HasPrefix(job, header) {
		t.Fatalf("Unexpected job header %x", job[:len(header)])
	}
	if !bytes.HasSuffix(job, []byte{Esc, 'E', Esc, 'Q'}) {
		t.Errorf("Unexpected job trailer %x", job[len(job)-4:])
	}

	data := job[len(header) : len(job)-4]
	var lines [][]byte
	for i := 0; i < len(data); i += 2 {
		lines = append(lines, data[i:i+2])
	}
	assertBitmapsIdentical(t, bitmap.UnpackColumns(lines, 16, bitmap.MSBFirst), b)
}

func TestLW550Problems(t *testing.T) {
	tests := []struct {
		name     string
		before   []byte
		after    []byte
		reason   string
		streamed bool
	}{
		{"empty roll", anEngineStatus(PrintIdle, BayMediaEmpty), nil, "empty", false},
		{"jam while printing", anEngineStatus(PrintIdle, BayMediaOK), anEngineStatus(Printing, BayMediaJammed), "jammed", true},
		{"printer error", anEngineStatus(PrintIdle, BayMediaOK), anEngineStatus(PrintError, BayMediaOK), "error", true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			port := &fakePort{responses: [][]byte{test.before}, fallback: test.after}
			p := device.Profile{Model: "test-lw", HeadHeightPx: 16, Variant: device.VariantLW550}

			err := aPrinter(&fakeOpener{port: port}).NewSession(p, fastLW550()).Run(context.Background(), aRandomBitmap(4, 16))
			var abort *AbortError
			if !errors.As(err, &abort) || !strings.Contains(abort.Reason, test.reason) {
				t.Fatalf("Expected an abort mentioning %q, got %v", test.reason, err)
			}
			if streamed := len(port.writes) > 1; streamed != test.streamed {
				t.Errorf("Label data written: %v", streamed)
			}
			if port.closed != 1 {
				t.Errorf("Port closed %d times", port.closed)
			}
		})
	}
}

func TestProtocolFor(t *testing.T) {
	if proto, err := ProtocolFor(device.Profile{Variant: device.VariantD1}); err != nil {
		t.Error(err)
	} else if _, ok := proto.(*D1); !ok {
		t.Errorf("Expected d1 protocol, got %T", proto)
	}
	if proto, err := ProtocolFor(device.Profile{Variant: device.VariantLW550}); err != nil {
		t.Error(err)
	} else if _, ok := proto.(*LW550); !ok {
		t.Errorf("Expected lw550 protocol, got %T", proto)
	}
	if _, err := ProtocolFor(device.Profile{Variant: "zpl"}); err == nil {
		t.Error("Expected an unknown variant to fail")
	}
}

func TestBLEFrames(t *testing.T) {
	data := make([]byte, 1000)
	frames := bleFrames(data, 498)

	if len(frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(frames))
	}
	expectedHeader := []byte{0xFF, 0xF0, 0x12, 0x34, 0xE8, 0x03, 0x00, 0x00, 0x20}
	if !bytes.Equal(frames[0], expectedHeader) {
		t.Errorf("Unexpected header %x", frames[0])
	}
	if len(frames[1]) != 498 || len(frames[2]) != 498 {
		t.Errorf("Unexpected chunk sizes %d %d", len(frames[1]), len(frames[2]))
	}
	if len(frames[3]) != 6 || !bytes.HasSuffix(frames[3], []byte{0x12, 0x34}) {
		t.Errorf("Unexpected last chunk %x", frames[3])
	}

	empty := bleFrames(nil, 498)
	if len(empty) != 2 || !bytes.Equal(empty[1], []byte{0x12, 0x34}) {
		t.Errorf("Unexpected frames for an empty message %x", empty)
	}
}

func TestTransportOpener(t *testing.T) {
	usb := &fakeOpener{port: &fakePort{}}
	o := TransportOpener{USB: usb}

	if _, err := o.Open(context.Background(), aD1Profile(), Location{}); err != nil || usb.opened != 1 {
		t.Errorf("USB profile not opened over USB: %v", err)
	}
	ble := device.Profile{Model: "letratag", Transport: device.TransportBLE}
	if _, err := o.Open(context.Background(), ble, Location{}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound without a BLE transport, got %v", err)
	}
}

func TestAccessHint(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("udev rules are linux only")
	}
	hint := AccessHint(aD1Profile())
	for _, s := range []string{`ATTRS{idVendor}=="0922"`, `ATTRS{idProduct}=="1002"`, "udevadm trigger"} {
		if !strings.Contains(hint, s) {
			t.Errorf("Hint %q doesn't contain %q", hint, s)
		}
	}
}
