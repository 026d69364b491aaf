package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/murmur"
)

// settingsDTO is the provider-shaped key set the backend speaks.
type settingsDTO struct {
	Model      string `json:"openai_model"`
	APIKey     string `json:"openai_api_key"`
	BaseURL    string `json:"openai_base_url"`
	MCPCommand string `json:"mcp_command"`
}

type chatDTO struct {
	SessionID string           `json:"session_id"`
	Messages  []chatMessageDTO `json:"messages"`
	Settings  *settingsDTO     `json:"settings,omitempty"`
}

type chatMessageDTO struct {
	Role    string     `json:"role"`
	Content contentDTO `json:"content"`
}

// sessionDTO is one entry of the persisted session map.
type sessionDTO struct {
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
	Messages  []messageDTO `json:"messages"`
}

type messageDTO struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   contentDTO `json:"content"`
	Timestamp time.Time  `json:"timestamp,omitzero"`
}

func chatRequestDTO(req ChatRequest) chatDTO {
	dto := chatDTO{
		SessionID: req.SessionID,
		Messages:  make([]chatMessageDTO, len(req.Messages)),
	}
	for i, m := range req.Messages {
		dto.Messages[i] = chatMessageDTO{
			Role:    string(m.Role),
			Content: contentDTO{Parts: m.Parts},
		}
	}
	// The server falls back to its own settings when the field is
	// absent; an all-empty object would override them with blanks.
	if !req.Settings.IsZero() {
		dto.Settings = &settingsDTO{
			Model:      req.Settings.Model,
			APIKey:     req.Settings.APIKey,
			BaseURL:    req.Settings.BaseURL,
			MCPCommand: req.Settings.MCPCommand,
		}
	}
	return dto
}

func sessionsToDTO(sessions map[string]murmur.Session) map[string]sessionDTO {
	out := make(map[string]sessionDTO, len(sessions))
	for id, s := range sessions {
		dto := sessionDTO{
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			Messages:  make([]messageDTO, len(s.Messages)),
		}
		for i, m := range s.Messages {
			dto.Messages[i] = messageDTO{
				ID:        m.ID,
				Role:      string(m.Role),
				Content:   contentDTO{Parts: m.Parts},
				Timestamp: m.Timestamp,
			}
		}
		out[id] = dto
	}
	return out
}

func sessionsFromDTO(dto map[string]sessionDTO) (map[string]murmur.Session, error) {
	out := make(map[string]murmur.Session, len(dto))
	for id, s := range dto {
		sess := murmur.Session{
			ID:        id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			Messages:  make([]murmur.Message, len(s.Messages)),
		}
		for i, m := range s.Messages {
			sess.Messages[i] = murmur.Message{
				ID:        m.ID,
				Role:      murmur.Role(m.Role),
				Parts:     m.Content.Parts,
				Timestamp: m.Timestamp,
			}
		}
		out[id] = sess
	}
	return out, nil
}

// contentDTO handles the wire duality of message content: a single
// text part is a plain JSON string (assistant text, user text-only
// turns); everything else is an ordered array of typed parts.
type contentDTO struct {
	Parts []murmur.Part
}

// partDTO is the array-form wire shape of one part. Marshaling uses
// per-type shapes so a text part always carries its "text" field, even
// when empty.
type partDTO struct {
	Type       string        `json:"type"`
	Text       string        `json:"text"`
	ImageURL   *imageURLDTO  `json:"image_url,omitempty"`
	InputAudio *inputAudioDT `json:"input_audio,omitempty"`
}

type imageURLDTO struct {
	URL string `json:"url"`
}

type inputAudioDT struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

func (c contentDTO) MarshalJSON() ([]byte, error) {
	if len(c.Parts) == 1 {
		if tp, ok := c.Parts[0].(murmur.TextPart); ok {
			return json.Marshal(tp.Text)
		}
	}
	raw := make([]json.RawMessage, len(c.Parts))
	for i, p := range c.Parts {
		b, err := marshalPart(p)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

func (c *contentDTO) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Parts = []murmur.Part{murmur.TextPart{Text: text}}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content is neither string nor array: %w", err)
	}
	c.Parts = make([]murmur.Part, len(raw))
	for i, r := range raw {
		p, err := unmarshalPart(r)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		c.Parts[i] = p
	}
	return nil
}

func marshalPart(p murmur.Part) (json.RawMessage, error) {
	switch v := p.(type) {
	case murmur.TextPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{"text", v.Text})
	case murmur.ImagePart:
		return json.Marshal(struct {
			Type     string      `json:"type"`
			ImageURL imageURLDTO `json:"image_url"`
		}{"image_url", imageURLDTO{URL: v.URL}})
	case murmur.AudioPart:
		return json.Marshal(struct {
			Type       string       `json:"type"`
			InputAudio inputAudioDT `json:"input_audio"`
		}{"input_audio", inputAudioDT{Data: v.Data, Format: v.Format}})
	case murmur.OpaquePart:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("unknown part type: %T", p)
	}
}

func unmarshalPart(raw json.RawMessage) (murmur.Part, error) {
	var dto partDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	switch dto.Type {
	case "text":
		return murmur.TextPart{Text: dto.Text}, nil
	case "image_url":
		var url string
		if dto.ImageURL != nil {
			url = dto.ImageURL.URL
		}
		return murmur.ImagePart{URL: url}, nil
	case "input_audio":
		var data, format string
		if dto.InputAudio != nil {
			data, format = dto.InputAudio.Data, dto.InputAudio.Format
		}
		return murmur.AudioPart{Data: data, Format: format}, nil
	default:
		// Unrecognized parts are preserved verbatim, not rejected.
		return murmur.OpaquePart{Type: dto.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
