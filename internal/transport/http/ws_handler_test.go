package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketImportFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	server := httptest.NewServer(env.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/import"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type": "import",
		"payload": map[string]any{
			"secret": testSecret,
			"records": []map[string]any{
				{"source_id": "q1", "topic": "Algebra", "prompt": "2+2=?", "correct_answer": "4"},
				{"topic": "", "prompt": "x", "correct_answer": "y"},
			},
		},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write import: %v", err)
	}

	statuses := map[int]string{}
	for i := 0; i < 2; i++ {
		typ, payload := readNext(t, conn)
		if typ != "record" {
			t.Fatalf("expected record message, got %s", typ)
		}
		var rec recordPayload
		if err := json.Unmarshal(payload, &rec); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		statuses[rec.Index] = string(rec.Status)
	}
	if statuses[0] != "inserted" || statuses[1] != "failed" {
		t.Fatalf("unexpected statuses %+v", statuses)
	}

	typ, payload := readNext(t, conn)
	if typ != "summary" {
		t.Fatalf("expected summary, got %s", typ)
	}
	var summary importResponse
	if err := json.Unmarshal(payload, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total != 2 || summary.Inserted != 1 || summary.ErrorCount != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestWebSocketRejectsBadSecret(t *testing.T) {
	env := newTestEnv(t, 0)
	server := httptest.NewServer(env.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws/import", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type":    "import",
		"payload": map[string]any{"secret": "nope", "records": []any{map[string]any{"topic": "t", "prompt": "p", "correct_answer": "a"}}},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, payload := readNext(t, conn)
	if typ != "error" {
		t.Fatalf("expected error, got %s", typ)
	}
	var e errorPayload
	_ = json.Unmarshal(payload, &e)
	if e.Message != "unauthorized" {
		t.Fatalf("unexpected error message %q", e.Message)
	}
	if env.store.Len() != 0 {
		t.Fatalf("storage must be untouched")
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readNext(t, conn); typ != "error" {
		t.Fatalf("expected error for unsupported type, got %s", typ)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}

func TestWebSocketErrorThenImportOnSameConnection(t *testing.T) {
	env := newTestEnv(t, 0)
	server := httptest.NewServer(env.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws/import", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "join"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readNext(t, conn); typ != "error" {
		t.Fatalf("expected error, got %s", typ)
	}

	msg := map[string]any{
		"type": "import",
		"payload": map[string]any{
			"secret":  testSecret,
			"records": []any{"junk"},
		},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write import: %v", err)
	}
	if typ, _ := readNext(t, conn); typ != "record" {
		t.Fatalf("expected record, got %s", typ)
	}
	typ, payload := readNext(t, conn)
	if typ != "summary" {
		t.Fatalf("expected summary, got %s", typ)
	}
	var summary importResponse
	if err := json.Unmarshal(payload, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total != 1 || summary.ErrorCount != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestWebSocketBatchCompletesAfterClientLeaves(t *testing.T) {
	env := newTestEnv(t, 0)
	server := httptest.NewServer(env.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws/import", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	records := make([]map[string]any, 200)
	for i := range records {
		records[i] = map[string]any{"topic": "t", "prompt": "p", "correct_answer": "a"}
	}
	msg := map[string]any{"type": "import", "payload": map[string]any{"secret": testSecret, "records": records}}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write import: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for env.store.Len() < len(records) {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d stored records, got %d", len(records), env.store.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
