package wavebox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

const (
	defaultBaseURL   = "https://app.wavebox.innovar.com"
	defaultUserAgent = "wavebox-widget/0.1"
)

var clientTracer = otel.Tracer("wavebox.internal.client")

// Config controls how the backend client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client wraps the Wavebox REST endpoints the widget consumes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	userAgent  string
}

// NewClient creates a configured Client with sane defaults.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}
}

// CreateLead registers a visitor and opens their chat session.
func (c *Client) CreateLead(ctx context.Context, lead Lead) (*CreateLeadResponse, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(lead.OrganizationSlug) == "" {
		return nil, errors.New("wavebox: organization slug required")
	}
	ctx, span := clientTracer.Start(ctx, "wavebox.create_lead", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("slug", lead.OrganizationSlug))

	body, err := json.Marshal(lead)
	if err != nil {
		return nil, fmt.Errorf("wavebox: marshal lead: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/api/leads", nil, body)
	if err != nil {
		return nil, err
	}
	var resp CreateLeadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("wavebox: decode lead response: %w", err)
	}
	if !resp.Chat.Valid() {
		return nil, errors.New("wavebox: lead response missing chat session")
	}
	return &resp, nil
}

// SendMessage posts one visitor message to the conversation.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("wavebox: message text required")
	}
	if req.OrganizationID == "" || req.ChatID == "" || req.LeadID == "" {
		return nil, errors.New("wavebox: chat session identifiers required")
	}
	ctx, span := clientTracer.Start(ctx, "wavebox.send_message", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("organization_id", req.OrganizationID))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wavebox: marshal message: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/api/website-messaging", nil, body)
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("wavebox: decode message response: %w", err)
	}
	return &msg, nil
}

// FetchMessages returns the full ordered message list for a session. The
// server's order is authoritative; callers replace their local list wholesale.
func (c *Client) FetchMessages(ctx context.Context, session ChatSession) ([]Message, error) {
	if !session.Valid() {
		return nil, errors.New("wavebox: chat session identifiers required")
	}
	ctx, span := clientTracer.Start(ctx, "wavebox.fetch_messages", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("organization_id", session.OrganizationID))

	q := url.Values{}
	q.Set("organization_id", session.OrganizationID)
	q.Set("wavebox_chat_id", session.ChatID)
	q.Set("wavebox_lead_id", session.LeadID)
	data, err := c.invoke(ctx, http.MethodGet, "/api/website-messaging", q, nil)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("wavebox: decode message list: %w", err)
	}
	return msgs, nil
}

// FetchActivePopups returns the popups eligible for the given page context.
func (c *Client) FetchActivePopups(ctx context.Context, query PopupQuery) ([]Popup, error) {
	if strings.TrimSpace(query.Path) == "" {
		return nil, errors.New("wavebox: page path required")
	}
	ctx, span := clientTracer.Start(ctx, "wavebox.fetch_popups", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("path", query.Path),
		attribute.Bool("is_mobile", query.IsMobile),
	)

	q := url.Values{}
	q.Set("path", query.Path)
	q.Set("isMobile", strconv.FormatBool(query.IsMobile))
	q.Set("isNewVisitor", strconv.FormatBool(query.IsNewVisitor))
	data, err := c.invoke(ctx, http.MethodGet, "/api/pop-ups", q, nil)
	if err != nil {
		return nil, err
	}
	var popups []Popup
	if err := json.Unmarshal(data, &popups); err != nil {
		return nil, fmt.Errorf("wavebox: decode popup list: %w", err)
	}
	return popups, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("wavebox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wavebox: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("wavebox: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("backend request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)}
	}
	return data, nil
}
