package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Frame is the websocket frame kind an envelope travels in.
type Frame int

const (
	FrameText Frame = iota
	FrameBinary
)

var ErrEmptyOp = errors.New("request has no op")

// Request is one bridge call. Player and Target are chat-platform ids.
type Request struct {
	ID          string         `json:"id"`
	Op          string         `json:"op"`
	Player      string         `json:"player"`
	Name        string         `json:"name,omitempty"`
	Target      string         `json:"target,omitempty"`
	TargetName  string         `json:"target_name,omitempty"`
	TargetIsBot bool           `json:"target_is_bot,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
}

// Arg returns a string argument, tolerating numbers.
func (r Request) Arg(name string) string {
	v, ok := r.Args[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// IntArg returns a numeric argument; ok is false when absent or not a number.
func (r Request) IntArg(name string) (int, bool) {
	switch t := r.Args[name].(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// StringsArg returns a list argument. A single string becomes one line.
func (r Request) StringsArg(name string) []string {
	switch t := r.Args[name].(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		if t = strings.TrimSpace(t); t != "" {
			return strings.Split(t, "\n")
		}
	}
	return nil
}

func (r Request) BoolArg(name string) bool {
	switch t := r.Args[name].(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true") || t == "1" || strings.EqualFold(t, "yes")
	}
	return false
}

type Reply struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Push is a server-initiated event tied to the request that caused it.
type Push struct {
	Op   string `json:"op"`
	Ref  string `json:"ref,omitempty"`
	Data any    `json:"data,omitempty"`
}

func DecodeRequest(frame Frame, data []byte) (Request, error) {
	var req Request
	switch frame {
	case FrameBinary:
		var st structpb.Struct
		if err := proto.Unmarshal(data, &st); err != nil {
			return Request{}, fmt.Errorf("decode binary request: %w", err)
		}
		raw, err := json.Marshal(st.AsMap())
		if err != nil {
			return Request{}, err
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return Request{}, fmt.Errorf("decode binary request: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &req); err != nil {
			return Request{}, fmt.Errorf("decode request: %w", err)
		}
	}
	req.Op = strings.TrimSpace(req.Op)
	if req.Op == "" {
		return req, ErrEmptyOp
	}
	return req, nil
}

// Encode serializes a Reply, Push or Request for the given frame kind.
func Encode(frame Frame, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if frame != FrameBinary {
		return raw, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode binary envelope: %w", err)
	}
	return proto.Marshal(st)
}

// DecodeMap is the inverse of Encode for either frame kind, for clients and
// tests that do not know the concrete envelope type.
func DecodeMap(frame Frame, data []byte) (map[string]any, error) {
	if frame == FrameBinary {
		var st structpb.Struct
		if err := proto.Unmarshal(data, &st); err != nil {
			return nil, err
		}
		return st.AsMap(), nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
