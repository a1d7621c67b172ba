package rpc

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"nganiriza-api/internal/chatctx"
)

// Message types mirror nganiriza/assistant/v1/assistant.proto:
//
//	message ChatMessage    { string role = 1; string content = 2; }
//	message ChatRequest    { string query = 1; repeated ChatMessage history = 2;
//	                         string system_prompt = 3; int32 max_tokens = 4; double temperature = 5; }
//	message ChatResponse   { string response = 1; bool summarized = 2; string summary = 3;
//	                         int32 estimated_tokens = 4; }
//	message TitleRequest   { repeated ChatMessage messages = 1; int32 max_length = 2; }
//	message TitleResponse  { string title = 1; }
//	message HealthRequest  {}
//	message HealthResponse { string status = 1; string model = 2; repeated string models = 3; string error = 4; }

// WireMessage is implemented by every request and response type.
type WireMessage interface {
	MarshalWire() []byte
	UnmarshalWire(b []byte) error
}

type ChatMessage struct {
	Role    string
	Content string
}

func (m *ChatMessage) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Role)
	return appendString(b, 2, m.Content)
}

func (m *ChatMessage) UnmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.Role = string(f.raw)
		case f.is(2, protowire.BytesType):
			m.Content = string(f.raw)
		}
		return nil
	})
}

func appendMessages(b []byte, num protowire.Number, msgs []ChatMessage) []byte {
	for i := range msgs {
		b = appendMessage(b, num, msgs[i].MarshalWire())
	}
	return b
}

func consumeMessage(raw []byte, dst *[]ChatMessage) error {
	var m ChatMessage
	if err := m.UnmarshalWire(raw); err != nil {
		return err
	}
	*dst = append(*dst, m)
	return nil
}

// ToChat converts wire messages to context-manager messages.
func ToChat(msgs []ChatMessage) []chatctx.Message {
	out := make([]chatctx.Message, len(msgs))
	for i, m := range msgs {
		out[i] = chatctx.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

type ChatRequest struct {
	Query        string
	History      []ChatMessage
	SystemPrompt string
	MaxTokens    int32
	Temperature  float64
}

func (m *ChatRequest) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Query)
	b = appendMessages(b, 2, m.History)
	b = appendString(b, 3, m.SystemPrompt)
	b = appendInt(b, 4, int64(m.MaxTokens))
	return appendDouble(b, 5, m.Temperature)
}

func (m *ChatRequest) UnmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.Query = string(f.raw)
		case f.is(2, protowire.BytesType):
			return consumeMessage(f.raw, &m.History)
		case f.is(3, protowire.BytesType):
			m.SystemPrompt = string(f.raw)
		case f.is(4, protowire.VarintType):
			m.MaxTokens = int32(f.u64)
		case f.is(5, protowire.Fixed64Type):
			m.Temperature = math.Float64frombits(f.u64)
		}
		return nil
	})
}

type ChatResponse struct {
	Response        string
	Summarized      bool
	Summary         string
	EstimatedTokens int32
}

func (m *ChatResponse) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Response)
	b = appendBool(b, 2, m.Summarized)
	b = appendString(b, 3, m.Summary)
	return appendInt(b, 4, int64(m.EstimatedTokens))
}

func (m *ChatResponse) UnmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.Response = string(f.raw)
		case f.is(2, protowire.VarintType):
			m.Summarized = protowire.DecodeBool(f.u64)
		case f.is(3, protowire.BytesType):
			m.Summary = string(f.raw)
		case f.is(4, protowire.VarintType):
			m.EstimatedTokens = int32(f.u64)
		}
		return nil
	})
}

type TitleRequest struct {
	Messages  []ChatMessage
	MaxLength int32
}

func (m *TitleRequest) MarshalWire() []byte {
	var b []byte
	b = appendMessages(b, 1, m.Messages)
	return appendInt(b, 2, int64(m.MaxLength))
}

func (m *TitleRequest) UnmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			return consumeMessage(f.raw, &m.Messages)
		case f.is(2, protowire.VarintType):
			m.MaxLength = int32(f.u64)
		}
		return nil
	})
}

type TitleResponse struct {
	Title string
}

func (m *TitleResponse) MarshalWire() []byte { return appendString(nil, 1, m.Title) }

func (m *TitleResponse) UnmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.is(1, protowire.BytesType) {
			m.Title = string(f.raw)
		}
		return nil
	})
}

type HealthRequest struct{}

func (*HealthRequest) MarshalWire() []byte { return nil }

// UnmarshalWire validates the framing and ignores unknown fields.
func (*HealthRequest) UnmarshalWire(b []byte) error {
	return eachField(b, func(field) error { return nil })
}

type HealthResponse struct {
	Status string
	Model  string
	Models []string
	Error  string
}

func (m *HealthResponse) MarshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Status)
	b = appendString(b, 2, m.Model)
	for _, name := range m.Models {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	return appendString(b, 4, m.Error)
}

func (m *HealthResponse) UnmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.is(1, protowire.BytesType):
			m.Status = string(f.raw)
		case f.is(2, protowire.BytesType):
			m.Model = string(f.raw)
		case f.is(3, protowire.BytesType):
			m.Models = append(m.Models, string(f.raw))
		case f.is(4, protowire.BytesType):
			m.Error = string(f.raw)
		}
		return nil
	})
}
