package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/amrhady2/go-logix-cip/logix"
)

// fakeTransport is a minimal logix.Transport double so the gateway can be
// exercised end-to-end through a real logix.Client without a socket.
type fakeTransport struct {
	connected bool
	reply     []byte
}

func (f *fakeTransport) ForwardOpen() error                  { f.connected = true; return nil }
func (f *fakeTransport) SendUnitData([]byte) ([]byte, error) { return f.reply, nil }
func (f *fakeTransport) NextSequence() uint16                { return 1 }
func (f *fakeTransport) IsConnected() bool                   { return f.connected }

func buildReadTagReply() []byte {
	// general status SUCCESS at absolute offset 48, service reply at 46,
	// data (type code DINT + value 99) following immediately.
	body := make([]byte, 26)
	body[46-24] = 0xCC // SvcReadTag reply opcode, not checked by the client
	body[48-24] = 0x00 // StatusSuccess
	body[49-24] = 0x00
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:2], 0x00C4) // DINT
	binary.LittleEndian.PutUint32(data[2:6], 99)

	hdr := make([]byte, 24)
	binary.LittleEndian.PutUint16(hdr[0:2], 0x70)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(body)+len(data)))
	return append(append(hdr, body...), data...)
}

func newTestServer() (*Server, context.CancelFunc) {
	ft := &fakeTransport{reply: buildReadTagReply()}
	client := logix.NewClient(ft)
	s := New("line1", client, nil, Config{OperatorUser: "admin", OperatorHash: ""}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return s, cancel
}

func TestHandleListTags(t *testing.T) {
	s, cancel := newTestServer()
	defer cancel()
	s.SetTags([]logix.Tag{{Name: "Counts", Kind: logix.KindAtomic}})

	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var tags []logix.Tag
	if err := json.Unmarshal(w.Body.Bytes(), &tags); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "Counts" {
		t.Fatalf("got %+v", tags)
	}
}

func TestHandleGetTagGoesThroughWorkerLoop(t *testing.T) {
	s, cancel := newTestServer()
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/tags/Counts", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var tv logix.TagValue
	if err := json.Unmarshal(w.Body.Bytes(), &tv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tv.Value.(float64) != 99 {
		t.Fatalf("value = %v, want 99", tv.Value)
	}
}

func TestHandleWriteTagRequiresAuth(t *testing.T) {
	s, cancel := newTestServer()
	defer cancel()

	body := `{"value": 5, "type": "DINT"}`
	req := httptest.NewRequest(http.MethodPost, "/tags/Counts", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a session", w.Code)
	}
}

func TestHandleLoginRejectsBadCredentials(t *testing.T) {
	s, cancel := newTestServer()
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"Username":"admin","Password":"wrong"}`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

// TestHandleWriteTagSucceedsAfterLogin drives a login followed by a
// numeric write through a real http.Client (so the session cookie carries
// over), the regression case for the JSON-number-to-int64 write path.
func TestHandleWriteTagSucceedsAfterLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}

	ft := &fakeTransport{reply: buildReadTagReply()}
	client := logix.NewClient(ft)
	s := New("line1", client, nil, Config{OperatorUser: "admin", OperatorHash: string(hash)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	hc := &http.Client{Jar: jar}

	loginResp, err := hc.Post(srv.URL+"/login", "application/json", strings.NewReader(`{"Username":"admin","Password":"s3cret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusNoContent {
		t.Fatalf("login status = %d, want 204", loginResp.StatusCode)
	}

	writeResp, err := hc.Post(srv.URL+"/tags/Counts", "application/json", strings.NewReader(`{"value": 42, "type": "DINT"}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	defer writeResp.Body.Close()
	if writeResp.StatusCode != http.StatusNoContent {
		t.Fatalf("write status = %d, want 204", writeResp.StatusCode)
	}
}
