package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	var gotOffsets []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			Offset int64 `json:"offset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		gotOffsets = append(gotOffsets, payload.Offset)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": []map[string]interface{}{
				{"update_id": 100, "message": map[string]interface{}{"message_id": 1, "chat": map[string]interface{}{"id": 42}, "text": "ciao"}},
				{"update_id": 101, "message": map[string]interface{}{"message_id": 2, "chat": map[string]interface{}{"id": 42}, "text": "/start"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient("test-token", Options{Endpoint: srv.URL, PollTimeout: 1}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	updates, err := c.GetUpdates(context.Background())
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 || updates[1].Message.Text != "/start" {
		t.Fatalf("unexpected updates: %+v", updates)
	}

	// 第二次轮询必须带上推进后的 offset
	if _, err := c.GetUpdates(context.Background()); err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(gotOffsets) != 2 || gotOffsets[0] != 0 || gotOffsets[1] != 102 {
		t.Fatalf("unexpected offsets: %v", gotOffsets)
	}
}

func TestSendMessageSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": false, "error_code": 403, "description": "bot was blocked by the user",
		})
	}))
	defer srv.Close()

	c, err := NewClient("test-token", Options{Endpoint: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = c.SendMessage(context.Background(), SendMessageRequest{ChatID: 42, Text: "ciao"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("", Options{}, nil); err == nil {
		t.Fatalf("expected empty token to fail")
	}
}
