package car

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-picar/pkg/drive"
)

func TestSend_EmitsDriveThenSteer(t *testing.T) {
	em := &MockEmitter{}
	d := NewDispatcher(em)

	res := d.Send(drive.Command{Speed: 50, Steer: 90})
	if !res.OK || res.Err != nil {
		t.Fatalf("Send() = %+v", res)
	}

	want := []Event{{EventDrive, 50}, {EventSteer, 90}}
	if diff := cmp.Diff(want, em.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_ClampsPayloads(t *testing.T) {
	em := &MockEmitter{}
	d := NewDispatcher(em)

	res := d.Send(drive.Command{Speed: 400, Steer: -30})
	if res.Sent != (drive.Command{Speed: 100, Steer: 0}) {
		t.Errorf("Sent = %+v", res.Sent)
	}
	d.Send(drive.Command{Speed: -400, Steer: 300})

	want := []Event{
		{EventDrive, 100}, {EventSteer, 0},
		{EventDrive, -100}, {EventSteer, 180},
	}
	if diff := cmp.Diff(want, em.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_NTimesGives2NEventsInOrder(t *testing.T) {
	em := &MockEmitter{}
	d := NewDispatcher(em)

	var want []Event
	for i := 0; i < 10; i++ {
		cmd := drive.Command{Speed: i * 10, Steer: 90 + i}
		d.Send(cmd)
		want = append(want, Event{EventDrive, cmd.Speed}, Event{EventSteer, cmd.Steer})
	}

	if diff := cmp.Diff(want, em.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if s := d.Stats(); s.Sent != 10 || s.Failures != 0 || s.Last != (drive.Command{Speed: 90, Steer: 99}) {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestSend_NotConnected(t *testing.T) {
	em := &MockEmitter{}
	em.SetConnected(false)
	d := NewDispatcher(em)

	res := d.Send(drive.Command{Speed: 10, Steer: 90})
	if res.OK || !errors.Is(res.Err, ErrNotConnected) {
		t.Errorf("Send() = %+v, want ErrNotConnected", res)
	}
	if len(em.Events()) != 0 {
		t.Errorf("nothing should be emitted, got %v", em.Events())
	}
	if d.Stats().Failures != 1 {
		t.Errorf("failure not counted")
	}
}

func TestSend_DriveFailureSkipsSteer(t *testing.T) {
	boom := errors.New("write: broken pipe")
	em := &MockEmitter{EmitFunc: func(event string, args ...any) error {
		if event == EventDrive {
			return boom
		}
		return nil
	}}
	d := NewDispatcher(em)

	res := d.Send(drive.Command{Speed: 10, Steer: 90})
	if res.OK || !errors.Is(res.Err, boom) {
		t.Errorf("Send() = %+v", res)
	}
	if len(em.Events()) != 0 {
		t.Errorf("steer must not follow a failed drive, got %v", em.Events())
	}
}

func TestSend_SteerFailureReported(t *testing.T) {
	em := &MockEmitter{EmitFunc: func(event string, args ...any) error {
		if event == EventSteer {
			return errors.New("closed")
		}
		return nil
	}}
	d := NewDispatcher(em)

	if res := d.Send(drive.Command{Speed: 10, Steer: 90}); res.OK {
		t.Error("expected failure")
	}
	if diff := cmp.Diff([]Event{{EventDrive, 10}}, em.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestHalt(t *testing.T) {
	em := &MockEmitter{}
	d := NewDispatcher(em)

	if res := d.Halt(); !res.OK {
		t.Fatalf("Halt() = %+v", res)
	}
	want := []Event{{EventDrive, 0}, {EventSteer, 90}}
	if diff := cmp.Diff(want, em.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"", PolicyDrop, false},
		{"drop", PolicyDrop, false},
		{"FATAL", PolicyFatal, false},
		{"retry", PolicyDrop, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
	if PolicyFatal.String() != "fatal" || PolicyDrop.String() != "drop" {
		t.Error("policy names")
	}
}

func TestClose_ClosesEmitter(t *testing.T) {
	em := &MockEmitter{}
	d := NewDispatcher(em)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !em.Closed() || d.Connected() {
		t.Error("emitter should be closed")
	}
}

// TestDial_SendsOverSocketIO drives a real Socket.IO session against a
// scripted server and checks the frames on the wire.
func TestDial_SendsOverSocketIO(t *testing.T) {
	frames := make(chan string, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"e","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
		if _, msg, err := conn.ReadMessage(); err != nil || !strings.HasPrefix(string(msg), "40") {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"s"}`))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.HasPrefix(string(msg), "42") {
				frames <- string(msg)
			}
		}
	}))
	defer srv.Close()

	client, err := Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	d := NewDispatcher(client)
	defer d.Close()

	if res := d.Send(drive.Command{Speed: 25, Steer: 100}); !res.OK {
		t.Fatalf("Send() = %+v", res)
	}

	var got []string
	for len(got) < 2 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	want := []string{`42["drive",25]`, `42["steer",100]`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wire frames mismatch (-want +got):\n%s", diff)
	}
}
