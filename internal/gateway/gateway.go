package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/location"
	"go.uber.org/zap"

	"github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/logger"
	"github.com/shopforge/shopforge/pkg/metrics"
)

// Request is the inbound envelope accepted by the gateway.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// GraphQLError is one entry of the response errors list.
type GraphQLError struct {
	Message    string                    `json:"message"`
	Locations  []location.SourceLocation `json:"locations,omitempty"`
	Path       []interface{}             `json:"path,omitempty"`
	Extensions map[string]interface{}    `json:"extensions"`
}

// Extensions carries request tracing metadata attached to every response.
type Extensions struct {
	RequestID       string `json:"requestId"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// Response is the outbound envelope. Data and Errors may both be present
// when execution partially succeeded.
type Response struct {
	Data       interface{}    `json:"data,omitempty"`
	Errors     []GraphQLError `json:"errors,omitempty"`
	Extensions Extensions     `json:"extensions"`
}

// Config bounds what the gateway will execute.
type Config struct {
	MaxDepth             int
	MaxComplexity        int
	IntrospectionEnabled bool
}

// Gateway validates, sanitizes and bounds incoming requests before executing
// them against the schema.
type Gateway struct {
	schema graphql.Schema
	cfg    Config
	log    *zap.Logger
}

// New constructs a gateway around an executable schema.
func New(s graphql.Schema, cfg Config) *Gateway {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	return &Gateway{
		schema: s,
		cfg:    cfg,
		log:    logger.WithModule("gateway"),
	}
}

// Execute runs the full request pipeline and always returns a response
// envelope carrying a unique request id.
func (g *Gateway) Execute(ctx context.Context, req Request) *Response {
	requestID := uuid.NewString()
	start := time.Now()

	operation := req.OperationName
	if operation == "" {
		operation = "anonymous"
	}

	finish := func(resp *Response, outcome string) *Response {
		resp.Extensions = Extensions{
			RequestID:       requestID,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
		metrics.GraphQLRequests.WithLabelValues(outcome).Inc()
		metrics.GraphQLLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		return resp
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return finish(g.reject(requestID, errors.ErrValidation.WithMessage("Query must be a non-empty string")), "rejected")
	}

	query = sanitize(query)

	if err := checkSyntax(query); err != nil {
		return finish(g.reject(requestID, err), "rejected")
	}

	if depth := maxDepthOf(query); depth > g.cfg.MaxDepth {
		err := errors.ErrQueryTooComplex.
			WithMessage("Query exceeds maximum allowed depth").
			WithDetail("depth", depth).
			WithDetail("maxDepth", g.cfg.MaxDepth)
		return finish(g.reject(requestID, err), "rejected")
	}

	if g.cfg.MaxComplexity > 0 {
		if fields := complexityOf(query); fields > g.cfg.MaxComplexity {
			err := errors.ErrQueryTooComplex.
				WithMessage("Query exceeds maximum allowed complexity").
				WithDetail("complexity", fields).
				WithDetail("maxComplexity", g.cfg.MaxComplexity)
			return finish(g.reject(requestID, err), "rejected")
		}
	}

	if !g.cfg.IntrospectionEnabled && containsIntrospection(query) {
		return finish(g.reject(requestID, errors.ErrIntrospectionDisabled), "rejected")
	}

	result := graphql.Do(graphql.Params{
		Schema:         g.schema,
		RequestString:  query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	resp := &Response{Data: result.Data}
	for _, fe := range result.Errors {
		resp.Errors = append(resp.Errors, g.formatError(requestID, fe))
	}

	outcome := "ok"
	switch {
	case len(resp.Errors) > 0 && resp.Data != nil:
		outcome = "partial"
	case len(resp.Errors) > 0:
		outcome = "error"
	}
	if len(resp.Errors) > 0 {
		g.log.Warn("request completed with errors",
			zap.String("request_id", requestID),
			zap.String("operation", operation),
			zap.Int("error_count", len(resp.Errors)))
	}

	return finish(resp, outcome)
}

// reject builds a single-error envelope for a request stopped before
// execution.
func (g *Gateway) reject(requestID string, err error) *Response {
	appErr := errors.FromError(err)
	g.log.Warn("request rejected",
		zap.String("request_id", requestID),
		zap.String("code", appErr.Code))

	return &Response{
		Errors: []GraphQLError{{
			Message:    appErr.Message,
			Extensions: errorExtensions(requestID, appErr.Code, appErr.Details),
		}},
	}
}

func (g *Gateway) formatError(requestID string, fe gqlerrors.FormattedError) GraphQLError {
	code := errors.ErrInternal.Code
	var details map[string]interface{}

	if c, ok := fe.Extensions["code"].(string); ok && c != "" {
		code = c
		if d, ok := fe.Extensions["details"].(map[string]interface{}); ok {
			details = d
		}
	} else if orig := fe.OriginalError(); orig != nil {
		appErr := errors.FromError(orig)
		code = appErr.Code
		details = appErr.Details
	} else if strings.Contains(fe.Message, "Syntax Error") {
		code = errors.ErrSyntax.Code
	} else {
		code = errors.ErrValidation.Code
	}

	return GraphQLError{
		Message:    fe.Message,
		Locations:  fe.Locations,
		Path:       fe.Path,
		Extensions: errorExtensions(requestID, code, details),
	}
}

func errorExtensions(requestID, code string, details map[string]interface{}) map[string]interface{} {
	ext := map[string]interface{}{
		"code":      code,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": requestID,
	}
	if len(details) > 0 {
		ext["details"] = details
	}
	return ext
}
