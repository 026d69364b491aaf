package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Stream(t *testing.T) {
	t.Parallel()
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"type":"status","content":"thinking"}`+"\n")
		io.WriteString(w, `{"type":"token","content":"Hi"}`+"\n")
		io.WriteString(w, `{"type":"token","content":" there"}`+"\n")
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	stream, err := client.Stream(context.Background(), backend.ChatRequest{
		SessionID: "s1",
		Messages: []murmur.Message{{
			ID:    "m1",
			Role:  murmur.RoleUser,
			Parts: []murmur.Part{murmur.TextPart{Text: "hello"}},
		}},
		Settings: murmur.Settings{Model: "gpt-4o"},
	})
	require.NoError(t, err)
	defer stream.Close()

	var events []murmur.Event
	for {
		evt, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, evt)
	}

	require.Len(t, events, 3)
	assert.Equal(t, murmur.EventStatus{Label: "thinking"}, events[0])
	assert.Equal(t, murmur.EventToken{Content: "Hi"}, events[1])
	assert.Equal(t, murmur.EventToken{Content: " there"}, events[2])
	assert.Equal(t, "Hi there", stream.Text())
	assert.Equal(t, murmur.StreamStateComplete, stream.State())

	// Request wire shape: session id, role-tagged messages, settings.
	assert.Equal(t, "s1", gotBody["session_id"])
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	// A single text part travels as a plain string.
	assert.Equal(t, "hello", first["content"])
	settings := gotBody["settings"].(map[string]any)
	assert.Equal(t, "gpt-4o", settings["openai_model"])
}

func TestClient_Stream_ZeroSettingsOmitted(t *testing.T) {
	t.Parallel()
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	stream, err := client.Stream(context.Background(), backend.ChatRequest{SessionID: "s1"})
	require.NoError(t, err)
	stream.Close()

	// Absent settings let the server fall back to its own; an all-empty
	// object would override them with blanks.
	_, present := gotBody["settings"]
	assert.False(t, present)
}

func TestClient_Stream_MultiPartContent(t *testing.T) {
	t.Parallel()
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	stream, err := client.Stream(context.Background(), backend.ChatRequest{
		SessionID: "s1",
		Messages: []murmur.Message{{
			ID:   "m1",
			Role: murmur.RoleUser,
			Parts: []murmur.Part{
				murmur.TextPart{Text: ""},
				murmur.ImagePart{URL: "data:image/png;base64,AAAA"},
				murmur.AudioPart{Data: "BBBB", Format: "webm"},
			},
		}},
	})
	require.NoError(t, err)
	stream.Close()

	first := gotBody["messages"].([]any)[0].(map[string]any)
	parts := first["content"].([]any)
	require.Len(t, parts, 3)

	text := parts[0].(map[string]any)
	assert.Equal(t, "text", text["type"])
	// The empty text field must still be present.
	assert.Equal(t, "", text["text"])

	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/png;base64,AAAA", img["image_url"].(map[string]any)["url"])

	audio := parts[2].(map[string]any)
	assert.Equal(t, "input_audio", audio["type"])
	inner := audio["input_audio"].(map[string]any)
	assert.Equal(t, "BBBB", inner["data"])
	assert.Equal(t, "webm", inner["format"])
}

func TestClient_Stream_RejectsInvalidMessage(t *testing.T) {
	t.Parallel()
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	// Assistant messages carry text only; an image part must never
	// reach the wire.
	_, err := client.Stream(context.Background(), backend.ChatRequest{
		SessionID: "s1",
		Messages: []murmur.Message{{
			ID:    "m1",
			Role:  murmur.RoleAssistant,
			Parts: []murmur.Part{murmur.ImagePart{URL: "data:image/png;base64,AAAA"}},
		}},
	})

	require.ErrorIs(t, err, murmur.ErrValidation)
	assert.False(t, hit)
}

func TestClient_Stream_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"rate limited"}`)
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	_, err := client.Stream(context.Background(), backend.ChatRequest{SessionID: "s1"})

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "rate limited", apiErr.Detail)
}

func TestClient_Stream_NonJSONErrorBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream exploded")
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	_, err := client.Stream(context.Background(), backend.ChatRequest{SessionID: "s1"})

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream exploded", apiErr.Detail)
}

func TestClient_Stream_ContextCancelled(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"type":"token","content":"A"}`+"\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Stream(ctx, backend.ChatRequest{SessionID: "s1"})
	require.NoError(t, err)
	defer stream.Close()

	evt, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, murmur.EventToken{Content: "A"}, evt)

	cancel()
	_, err = stream.Next()
	require.Error(t, err)
	assert.Equal(t, murmur.StreamStateError, stream.State())
	// The partial buffer survives the failure.
	assert.Equal(t, "A", stream.Text())
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// dataThenErrBody returns its payload and a transport error from the
// same Read call, as the io.Reader contract permits.
type dataThenErrBody struct {
	data []byte
	err  error
	done bool
}

func (b *dataThenErrBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, b.err
	}
	b.done = true
	return copy(p, b.data), b.err
}

func (b *dataThenErrBody) Close() error { return nil }

func TestClient_Stream_DeliversTailBeforeReadError(t *testing.T) {
	t.Parallel()
	body := &dataThenErrBody{
		data: []byte(`{"type":"token","content":"final words"}` + "\n"),
		err:  errors.New("connection reset"),
	}
	hc := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: body, Header: make(http.Header)}, nil
	})}
	client := backend.New("http://backend.test", backend.WithHTTPClient(hc))

	stream, err := client.Stream(context.Background(), backend.ChatRequest{SessionID: "s1"})
	require.NoError(t, err)
	defer stream.Close()

	// The chunk that arrived with the error is still a complete frame;
	// it must be delivered before the error.
	evt, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, murmur.EventToken{Content: "final words"}, evt)

	_, err = stream.Next()
	require.EqualError(t, err, "connection reset")
	assert.Equal(t, murmur.StreamStateError, stream.State())
	assert.Equal(t, "final words", stream.Text())
}

func TestClient_Stream_NextAfterClose(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	client := backend.New(srv.URL)

	stream, err := client.Stream(context.Background(), backend.ChatRequest{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	_, err = stream.Next()
	assert.ErrorIs(t, err, murmur.ErrStreamClosed)
	assert.Equal(t, murmur.StreamStateClosed, stream.State())
}

func TestClient_HistoryRoundTrip(t *testing.T) {
	t.Parallel()
	var stored json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/history", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				History json.RawMessage `json:"history"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			stored = payload.History
		case http.MethodGet:
			if stored == nil {
				io.WriteString(w, "{}")
				return
			}
			w.Write(stored)
		}
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	created := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	sessions := map[string]murmur.Session{
		"s1": {
			ID:        "s1",
			Title:     "multi-modal turn",
			CreatedAt: created,
			Messages: []murmur.Message{
				{
					ID:   "m1",
					Role: murmur.RoleUser,
					Parts: []murmur.Part{
						murmur.TextPart{Text: "see this"},
						murmur.ImagePart{URL: "data:image/png;base64,AAAA"},
					},
					Timestamp: created,
				},
				{
					ID:        "m2",
					Role:      murmur.RoleAssistant,
					Parts:     []murmur.Part{murmur.TextPart{Text: "I see it"}},
					Timestamp: created.Add(time.Second),
				},
			},
		},
	}

	require.NoError(t, client.WriteHistory(context.Background(), sessions))

	got, err := client.ReadHistory(context.Background())
	require.NoError(t, err)
	require.Contains(t, got, "s1")
	sess := got["s1"]
	assert.Equal(t, "multi-modal turn", sess.Title)
	assert.True(t, sess.CreatedAt.Equal(created))
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, sessions["s1"].Messages[0].Parts, sess.Messages[0].Parts)
	assert.Equal(t, sessions["s1"].Messages[1].Parts, sess.Messages[1].Parts)
}

func TestClient_ReadHistory_PreservesUnknownParts(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"s1":{"title":"t","created_at":"2026-08-28T10:00:00Z","messages":[
			{"id":"m1","role":"user","content":[
				{"type":"text","text":"hi"},
				{"type":"video_url","video_url":{"url":"https://example.com/v.mp4"}}
			]}
		]}}`)
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	got, err := client.ReadHistory(context.Background())
	require.NoError(t, err)

	parts := got["s1"].Messages[0].Parts
	require.Len(t, parts, 2)
	opaque, ok := parts[1].(murmur.OpaquePart)
	require.True(t, ok)
	assert.Equal(t, "video_url", opaque.Type)
	assert.Contains(t, string(opaque.Raw), "example.com/v.mp4")
}

func TestClient_WriteHistory_Error(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"detail":"maintenance"}`)
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	err := client.WriteHistory(context.Background(), map[string]murmur.Session{})

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "maintenance", apiErr.Detail)
}

func TestClient_FetchSettings(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/settings", r.URL.Path)
		io.WriteString(w, `{"openai_model":"gpt-4o","openai_api_key":"sk-abc","openai_base_url":"https://api.example.com/v1","mcp_command":"mcp run"}`)
	}))
	defer srv.Close()
	client := backend.New(srv.URL)

	settings, err := client.FetchSettings(context.Background())

	require.NoError(t, err)
	assert.Equal(t, murmur.Settings{
		Model:      "gpt-4o",
		APIKey:     "sk-abc",
		BaseURL:    "https://api.example.com/v1",
		MCPCommand: "mcp run",
	}, settings)
}

func TestClient_FetchSettings_Unreachable(t *testing.T) {
	t.Parallel()
	client := backend.New("http://127.0.0.1:0")

	_, err := client.FetchSettings(context.Background())

	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
