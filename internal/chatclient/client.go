// Package chatclient provides the conversation client used by chat sessions
// and the recents listing, with one implementation per backend dialect.
package chatclient

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
	"github.com/capitalize-ai/campuschat/pkg/metrics"
)

// Backend names used in metrics and spans.
const (
	BackendResource = "resource"
	BackendWebhook  = "webhook"
)

// DefaultPerPage is the recents page size when none is requested.
const DefaultPerPage = 20

// Client is the interface both backend dialects implement. Neither
// implementation retries on its own.
type Client interface {
	// CreateConversation starts a conversation seeded with an initial message.
	CreateConversation(ctx context.Context, params CreateParams) (*model.Conversation, error)

	// FetchConversation returns the conversation or an error wrapping ErrNotFound.
	FetchConversation(ctx context.Context, conversationID string) (*model.Conversation, error)

	// AppendMessage adds a message and returns the stored copy.
	AppendMessage(ctx context.Context, conversationID string, sender model.Sender, content string, metadata model.MessageMetadata) (*model.Message, error)

	// ListRecent returns one page of the user's conversations.
	ListRecent(ctx context.Context, userID string, page, perPage int) ([]model.ConversationSummary, model.RecentsPage, error)
}

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	ID          string
	Username    string
	DisplayName string
	Token       string
}

// SignedIn reports whether the identity carries a user id.
func (i Identity) SignedIn() bool {
	return i.ID != ""
}

// CreateParams describes a new conversation.
type CreateParams struct {
	UserID         string
	Username       string
	DisplayName    string
	InitialMessage string
	Metadata       CreateMetadata
	// ReplacesID is set when the conversation stands in for one the
	// server no longer knows. Resource servers receive it on POST /chat.
	ReplacesID string
}

// CreateMetadata is the context bag sent with a new conversation.
type CreateMetadata struct {
	Platform string
	Language string
	Topic    string
	Timezone string
}

func (p CreateParams) validate() error {
	if p.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	return nil
}

type options struct {
	httpClient *http.Client
	logger     *logger.Logger
	assistant  model.AIParticipant
	now        func() time.Time
}

// Option configures a backend.
type Option func(*options)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAssistant sets the assistant identity used for synthesized conversations.
func WithAssistant(a model.AIParticipant) Option {
	return func(o *options) { o.assistant = a }
}

// WithClock overrides the time source used for synthesized timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Global(),
		assistant:  model.DefaultAssistant,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var tracer = otel.Tracer("github.com/capitalize-ai/campuschat/internal/chatclient")

// observe starts a span for op and returns a finisher recording metrics.
func observe(ctx context.Context, backend, op string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "chatclient."+op, trace.WithAttributes(
		attribute.String("chat.backend", backend),
	))
	start := time.Now()

	return ctx, func(err error) {
		metrics.RecordClientCall(backend, op, outcome(err), time.Since(start).Seconds())
		if err != nil && !IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func normalizePerPage(perPage int) int {
	if perPage <= 0 {
		return DefaultPerPage
	}
	return perPage
}
