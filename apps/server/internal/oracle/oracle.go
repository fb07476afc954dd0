package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rpg-lite/dice"
	"rpg-lite/progression/catalog"
)

const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.8
	DefaultTimeout     = 60 * time.Second
)

// ErrUnavailable matches every *Error.
var ErrUnavailable = errors.New("narration oracle unavailable")

type Kind int

const (
	KindNotConfigured Kind = iota
	KindTimeout
	KindBadStatus
	KindConnectionFailed
)

var kindNames = map[Kind]string{
	KindNotConfigured:    "not_configured",
	KindTimeout:          "timeout",
	KindBadStatus:        "bad_status",
	KindConnectionFailed: "connection_failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := "oracle " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrUnavailable }

type Options struct {
	Temperature float64
}

// Narrator produces narration text for a system and user prompt pair.
type Narrator interface {
	Narrate(ctx context.Context, system, user string, opts Options) (string, error)
}

// Func adapts a plain function to Narrator.
type Func func(ctx context.Context, system, user string, opts Options) (string, error)

func (f Func) Narrate(ctx context.Context, system, user string, opts Options) (string, error) {
	return f(ctx, system, user, opts)
}

type backend struct {
	url     string
	model   string
	clients []openai.Client
}

// Client talks to one or more OpenAI-compatible endpoints. Each call picks a
// random endpoint and a random key on it.
type Client struct {
	backends []backend
	src      dice.Source
}

type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout    time.Duration
	httpClient *http.Client
	src        dice.Source
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.httpClient = hc }
}

func WithSource(src dice.Source) ClientOption {
	return func(c *clientConfig) { c.src = src }
}

func New(endpoints []catalog.Endpoint, opts ...ClientOption) *Client {
	cfg := clientConfig{timeout: DefaultTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.src == nil {
		cfg.src = dice.NewLocked(0)
	}

	c := &Client{src: cfg.src}
	for _, ep := range endpoints {
		url := NormalizeBaseURL(ep.URL)
		if url == "" || len(ep.Keys) == 0 {
			continue
		}
		b := backend{url: url, model: strings.TrimSpace(ep.Model)}
		if b.model == "" {
			b.model = DefaultModel
		}
		for _, key := range ep.Keys {
			reqOpts := []option.RequestOption{
				option.WithBaseURL(url),
				option.WithAPIKey(key),
				option.WithRequestTimeout(cfg.timeout),
				option.WithMaxRetries(0),
			}
			if cfg.httpClient != nil {
				reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
			}
			b.clients = append(b.clients, openai.NewClient(reqOpts...))
		}
		c.backends = append(c.backends, b)
	}
	return c
}

// Configured reports whether at least one endpoint is usable.
func (c *Client) Configured() bool { return len(c.backends) > 0 }

func (c *Client) Narrate(ctx context.Context, system, user string, opts Options) (string, error) {
	if len(c.backends) == 0 {
		return "", &Error{Kind: KindNotConfigured}
	}
	b := c.backends[c.src.Intn(len(c.backends))]
	client := b.clients[c.src.Intn(len(b.clients))]

	temp := opts.Temperature
	if temp <= 0 {
		temp = DefaultTemperature
	}
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temp),
	})
	if err != nil {
		oe := classify(err)
		log.Printf("[Oracle] %s via %s: %v", oe.Kind, b.url, err)
		return "", oe
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindBadStatus, Err: errors.New("empty choice list")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindBadStatus, Status: apiErr.StatusCode, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnectionFailed, Err: err}
}

// NormalizeBaseURL accepts either an API root or a full chat completions
// URL and returns an API root with a trailing slash.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return u + "/"
}
