package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tomgalvin.uk/labelle/api"
	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/compose"
	"tomgalvin.uk/labelle/internal/device"
	"tomgalvin.uk/labelle/internal/printer"
	"tomgalvin.uk/labelle/internal/render"
)

type readyPort struct {
	writes int
}

func (p *readyPort) Write(context.Context, []byte) error {
	p.writes++
	return nil
}

func (p *readyPort) Read(context.Context) ([]byte, error) {
	return []byte{0x00}, nil
}

func (p *readyPort) Close() error {
	return nil
}

// cancellingPort cancels the request once the first bytes are written.
type cancellingPort struct {
	readyPort
	cancel context.CancelFunc
}

func (p *cancellingPort) Write(ctx context.Context, data []byte) error {
	p.cancel()
	return p.readyPort.Write(ctx, data)
}

type stubOpener struct {
	port printer.Port
	err  error
}

func (o stubOpener) Open(context.Context, device.Profile, printer.Location) (printer.Port, error) {
	return o.port, o.err
}

func aServer(t *testing.T, opener printer.Opener) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := device.Builtin()
	store, err := calibration.NewStore(context.Background(), nil, calibration.Hardcoded(registry))
	if err != nil {
		t.Fatal(err)
	}
	compositor := compose.New(render.New(nil, ""), compose.DefaultOptions())
	s := NewServer(slog.Default(), registry, store, compositor, printer.New(slog.Default(), opener))
	s.DefaultDevice = "labelmanager-pnp"
	return s.Router()
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doWithContext(t, context.Background(), r, method, path, body)
}

func doWithContext(t *testing.T, ctx context.Context, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ptr[T any](v T) *T {
	return &v
}

func aTextNode(lines ...string) api.Node {
	return api.Node{Type: api.NodeTypeText, Lines: &lines}
}

func aTextRequest() api.LabelRequest {
	return api.LabelRequest{Nodes: []api.Node{aTextNode("Hello")}}
}

func TestGetDevices(t *testing.T) {
	r := aServer(t, stubOpener{})

	w := do(t, r, http.MethodGet, "/api/devices", nil)
	var all []api.Device
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || len(all) != len(device.Builtin().Profiles()) {
		t.Errorf("Unexpected response %d with %d devices", w.Code, len(all))
	}

	w = do(t, r, http.MethodGet, "/api/devices?filter=550", nil)
	var filtered []api.Device
	if err := json.Unmarshal(w.Body.Bytes(), &filtered); err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 || filtered[0].VendorId == nil || *filtered[0].VendorId != "0922" {
		t.Errorf("Unexpected devices %+v", filtered)
	}
}

func TestGetCalibration(t *testing.T) {
	r := aServer(t, stubOpener{})

	tests := []struct {
		path   string
		status int
		source calibration.Source
	}{
		{"/api/calibrations/labelmanager-pnp/12", http.StatusOK, calibration.SourceHardcoded},
		{"/api/calibrations/labelmanager-pnp/7", http.StatusOK, calibration.SourceDefault},
		{"/api/calibrations/zebra/12", http.StatusNotFound, ""},
		{"/api/calibrations/labelmanager-pnp/wide", http.StatusBadRequest, ""},
		{"/api/calibrations/labelmanager-pnp/0", http.StatusBadRequest, ""},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			w := do(t, r, http.MethodGet, test.path, nil)
			if w.Code != test.status {
				t.Fatalf("Expected %d, got %d: %s", test.status, w.Code, w.Body)
			}
			if test.source == "" {
				return
			}
			var c api.Calibration
			if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
				t.Fatal(err)
			}
			if c.Source != string(test.source) || c.CanvasHeightPx == 0 {
				t.Errorf("Unexpected calibration %+v", c)
			}
		})
	}
}

func TestGetCalibrations(t *testing.T) {
	w := do(t, aServer(t, stubOpener{}), http.MethodGet, "/api/calibrations", nil)
	var all []api.Calibration
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) == 0 {
		t.Error("No calibrations listed")
	}
}

func TestPreview(t *testing.T) {
	w := do(t, aServer(t, stubOpener{}), http.MethodPost, "/api/preview", aTextRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("Unexpected status %d: %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Unexpected content type %q", ct)
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	if h := img.Bounds().Dy(); h != 64 {
		t.Errorf("Preview is %d rows high, expected the print head's 64", h)
	}
}

func aPNG(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = color.Black.Y
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestPreviewRejects(t *testing.T) {
	r := aServer(t, stubOpener{})
	text := []api.Node{aTextNode("x")}
	hello := base64.StdEncoding.EncodeToString([]byte("hello"))

	tests := []struct {
		name   string
		req    any
		status int
	}{
		{"no nodes", api.LabelRequest{}, http.StatusBadRequest},
		{"not json", "nodes", http.StatusBadRequest},
		{"unknown type", api.LabelRequest{Nodes: []api.Node{{Type: "hologram"}}}, http.StatusBadRequest},
		{"empty text", api.LabelRequest{Nodes: []api.Node{{Type: api.NodeTypeText}}}, http.StatusBadRequest},
		{"zero scale", api.LabelRequest{Nodes: []api.Node{{Type: api.NodeTypeText, Lines: &[]string{"x"}, ScalePercent: ptr(0)}}}, http.StatusBadRequest},
		{"ambiguous device", api.LabelRequest{Device: ptr("pnp"), Nodes: text}, http.StatusBadRequest},
		{"unknown device", api.LabelRequest{Device: ptr("zebra"), Nodes: text}, http.StatusNotFound},
		{"unsupported tape", api.LabelRequest{TapeMm: ptr(24), Nodes: text}, http.StatusBadRequest},
		{"bad justify", api.LabelRequest{Justify: ptr("diagonal"), Nodes: text}, http.StatusBadRequest},
		{"not a picture", api.LabelRequest{Nodes: []api.Node{{Type: api.NodeTypePicture, Image: &hello}}}, http.StatusBadRequest},
		{"unknown symbology", api.LabelRequest{Nodes: []api.Node{{Type: api.NodeTypeBarcode, Payload: ptr("1"), Symbology: ptr("morse")}}}, http.StatusUnprocessableEntity},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/preview", test.req)
			if w.Code != test.status {
				t.Errorf("Expected %d, got %d: %s", test.status, w.Code, w.Body)
			}
		})
	}
}

func TestPreviewPicture(t *testing.T) {
	req := api.LabelRequest{
		Device:  ptr("labelmanager-420p"),
		Justify: ptr("left"),
		Nodes:   []api.Node{{Type: api.NodeTypePicture, Image: ptr(aPNG(t))}},
	}
	w := do(t, aServer(t, stubOpener{}), http.MethodPost, "/api/preview", req)
	if w.Code != http.StatusOK {
		t.Fatalf("Unexpected status %d: %s", w.Code, w.Body)
	}
}

func TestPrint(t *testing.T) {
	port := &readyPort{}
	w := do(t, aServer(t, stubOpener{port: port}), http.MethodPost, "/api/print", aTextRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("Unexpected status %d: %s", w.Code, w.Body)
	}
	var res api.PrintResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Device != "labelmanager-pnp" || res.TapeMm != 12 || res.Lines == 0 {
		t.Errorf("Unexpected response %+v", res)
	}
	if port.writes == 0 {
		t.Error("Nothing written to the printer")
	}
}

// A client that hangs up once the label has reached the printer doesn't
// leave it half printed.
func TestPrintOutlivesTheRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	port := &cancellingPort{cancel: cancel}
	w := doWithContext(t, ctx, aServer(t, stubOpener{port: port}), http.MethodPost, "/api/print", aTextRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("Unexpected status %d: %s", w.Code, w.Body)
	}
	if ctx.Err() == nil {
		t.Fatal("Request was never cancelled")
	}
	if port.writes < 2 {
		t.Errorf("Only %d writes reached the printer", port.writes)
	}
}

func TestPrintPermissionDenied(t *testing.T) {
	p, _ := device.Builtin().ByModel("labelmanager-pnp")
	denied := &printer.PermissionError{Device: p, Hint: printer.AccessHint(p)}

	w := do(t, aServer(t, stubOpener{err: denied}), http.MethodPost, "/api/print", aTextRequest())
	if w.Code != http.StatusForbidden {
		t.Fatalf("Unexpected status %d: %s", w.Code, w.Body)
	}
	var res api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Hint == nil || *res.Hint == "" {
		t.Error("No access hint in the response")
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err       error
		status    int
		retryable bool
	}{
		{printer.ErrDeviceNotFound, http.StatusNotFound, false},
		{fmt.Errorf("Couldn't open:\n%w", printer.ErrDeviceBusy), http.StatusConflict, true},
		{&printer.AbortError{Reason: "tape jammed"}, http.StatusBadGateway, false},
		{&render.NodeError{Index: 2, Err: render.ErrNodeTooTall}, http.StatusUnprocessableEntity, false},
		{compose.ErrLabelTooWide, http.StatusUnprocessableEntity, false},
		{errors.New("disk on fire"), http.StatusInternalServerError, false},
	}
	for _, test := range tests {
		status, body := errorResponse(test.err)
		retryable := body.Retryable != nil && *body.Retryable
		if status != test.status || retryable != test.retryable {
			t.Errorf("%v: got %d retryable=%v", test.err, status, retryable)
		}
	}
}
