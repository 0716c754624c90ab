package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aadiyog/yogatracker/internal/app"
	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/config"
	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/host"
	"github.com/aadiyog/yogatracker/internal/pose"
)

const frameMs = 1000.0 / 60

type message struct {
	Type      string          `json:"type"`
	ID        json.RawMessage `json:"id"`
	Value     json.RawMessage `json:"value"`
	SessionID string          `json:"sessionId"`
}

// client plays frames over a session websocket.
type client struct {
	t       *testing.T
	conn    *websocket.Conn
	ts      float64
	id      int
	last    engine.Result
	allDone int
}

func (c *client) read() message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg message
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read failed: %v", err)
	}
	return msg
}

func (c *client) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("write failed: %v", err)
	}
}

func (c *client) frame(f pose.Frame) {
	c.t.Helper()
	c.send(map[string]any{
		"type": host.TypeProcessFrame,
		"id":   c.id,
		"data": map[string]any{
			"landmarks": pose.Keypoints(f, pose.Point3D{X: 0.5, Y: 0.5}),
			"timestamp": c.ts,
		},
	})
	c.ts += frameMs
	c.id++

	for {
		msg := c.read()
		switch msg.Type {
		case host.TypeAllDone:
			c.allDone++
			continue
		case host.TypeFrameResult:
			if err := json.Unmarshal(msg.Value, &c.last); err != nil {
				c.t.Fatal(err)
			}
			return
		default:
			c.t.Fatalf("unexpected %s: %s", msg.Type, msg.Value)
		}
	}
}

func (c *client) hold(f pose.Frame, seconds float64) {
	for end := c.ts + seconds*1000; c.ts < end; {
		c.frame(f)
	}
}

func (c *client) move(from, to pose.Frame, seconds float64) {
	start := c.ts
	for end := c.ts + seconds*1000; c.ts < end; {
		c.frame(pose.Lerp(from, to, (c.ts-start)/(seconds*1000)))
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("shell hooks are not supported on windows")
	}

	tmpDir := t.TempDir()
	hookOut := filepath.Join(tmpDir, "hook.log")
	hookDir := filepath.Join(tmpDir, "hooks", "done")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(hookDir, "hook.json"),
		[]byte(`{"name":"done","executable":"run.sh","events":["plan_completed"]}`), 0644)
	os.WriteFile(filepath.Join(hookDir, "run.sh"),
		[]byte("#!/bin/sh\ncat >> '"+hookOut+"'\necho '{\"success\":true}'\n"), 0755)

	cfg := config.Config{
		DBPath:            filepath.Join(tmpDir, "data.db"),
		HookDir:           filepath.Join(tmpDir, "hooks"),
		HookTimeoutMs:     5000,
		ReferenceCacheTTL: time.Minute,
		Engine:            engine.DefaultConfig(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	application, err := app.New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- application.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()

	t.Run("CreateExercise", func(t *testing.T) {
		resp, err := http.Post(base+"/api/exercises", "application/json", strings.NewReader(`{"name":"arm-raise","reps":1}`))
		if err != nil {
			t.Fatalf("create exercise error = %v", err)
		}
		var created struct {
			ID string `json:"id"`
		}
		json.NewDecoder(resp.Body).Decode(&created)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}

		req, _ := http.NewRequest(http.MethodPut, base+"/api/exercises/"+created.ID+"/reference", bytes.NewReader(choreography.SampleReference()))
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload reference error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	var sessionID string

	t.Run("PracticeSession", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/session", nil)
		if err != nil {
			t.Fatalf("dial error = %v", err)
		}
		defer conn.Close()

		c := &client{t: t, conn: conn}
		sessionID = c.read().SessionID

		c.send(map[string]any{"type": host.TypeInit, "id": "init", "data": map[string]any{"exerciseName": "arm-raise"}})
		if msg := c.read(); msg.Type != host.TypeInitDone {
			t.Fatalf("init type = %s (%s), want init_done", msg.Type, msg.Value)
		}

		standing, raised := pose.StandingPose(), pose.ArmsRaisedPose()
		c.hold(standing, 4)
		c.move(standing, raised, 2)
		c.hold(raised, 4)
		c.move(raised, standing, 2)
		c.hold(standing, 6)
		c.hold(standing, 1)

		if c.allDone != 1 {
			t.Errorf("all_done count = %d, want 1", c.allDone)
		}
		if !c.last.PlanComplete || c.last.RepCount != 1 {
			t.Errorf("last result = %+v, want complete plan with 1 rep", c.last)
		}
	})

	t.Run("SessionHistory", func(t *testing.T) {
		var session struct {
			Completed bool `json:"completed"`
			Results   []struct {
				Exercise string `json:"exercise"`
				Reps     int    `json:"reps"`
			} `json:"results"`
		}
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			resp, err := http.Get(base + "/api/sessions/" + sessionID)
			if err == nil {
				json.NewDecoder(resp.Body).Decode(&session)
				resp.Body.Close()
				if session.Completed {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
		}
		if !session.Completed {
			t.Fatal("session was not recorded as completed")
		}
		if len(session.Results) != 1 || session.Results[0].Exercise != "arm-raise" || session.Results[0].Reps != 1 {
			t.Errorf("unexpected results %+v", session.Results)
		}
	})

	cancel()
	if err := <-served; err != nil {
		t.Errorf("Serve() error = %v", err)
	}

	t.Run("HookRan", func(t *testing.T) {
		data, err := os.ReadFile(hookOut)
		if err != nil {
			t.Fatalf("plan_completed hook did not run: %v", err)
		}
		if !strings.Contains(string(data), `"event":"plan_completed"`) {
			t.Errorf("unexpected hook input %s", data)
		}
	})
}
