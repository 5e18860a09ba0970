// Package middleware enforces contracts at HTTP boundaries. Request bodies
// are cast against the negotiated contract version before the handler runs;
// responses are checked against the contract before they are written. It is
// net/http-native and composes with any chi (or stdlib) router.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/metrics"
)

// Version negotiation inputs, in precedence order. Absent both, the latest
// registered version serves.
const (
	VersionHeader = "X-Contract-Version"
	VersionQuery  = "contractVersion"
)

// Error payload kinds.
const (
	ErrValidationFailed          = "validation_failed"
	ErrUnknownVersion            = "unknown_version"
	ErrInternalContractViolation = "internal_contract_violation"
)

// ContractSource resolves contracts by group and name. *treaty.Registry and
// *loader.Holder both implement it.
type ContractSource interface {
	Get(group, name string) (*treaty.Contract, error)
	GetVersion(group, name string, version int) (*treaty.Contract, error)
}

// ErrorPayload is the JSON body sent on enforcement failures. ErrorID
// correlates the response with the server log line.
type ErrorPayload struct {
	Error    string      `json:"error"`
	ErrorID  string      `json:"errorId"`
	Group    string      `json:"group,omitempty"`
	Contract string      `json:"contract,omitempty"`
	Version  int         `json:"version,omitempty"`
	Issues   []IssueView `json:"issues,omitempty"`
}

// IssueView is the wire form of a validation issue.
type IssueView struct {
	Path    string         `json:"path"`
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Hint    string         `json:"hint,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// Option configures the enforcement functions.
type Option func(*options)

type options struct {
	log      zerolog.Logger
	met      *metrics.Collector
	parseOpt treaty.ParseOpt
}

// WithLogger sets the logger for enforcement outcomes. The default discards
// everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics records validation outcomes, durations, and issue codes.
func WithMetrics(met *metrics.Collector) Option {
	return func(o *options) { o.met = met }
}

// WithParseOpt overrides DefaultParseOpt for request decoding.
func WithParseOpt(opt treaty.ParseOpt) Option {
	return func(o *options) { o.parseOpt = opt }
}

// DefaultParseOpt is the request decoding posture at HTTP boundaries:
// duplicate keys are errors, nesting is capped at 64 levels, bodies at 1MiB.
func DefaultParseOpt() treaty.ParseOpt {
	return treaty.ParseOpt{
		Strictness: treaty.Strictness{OnDuplicateKey: treaty.Error},
		MaxDepth:   64,
		MaxBytes:   1 << 20,
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop(), parseOpt: DefaultParseOpt()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Requests casts the request body against the negotiated version of
// group/name. On success the decoded value is stashed in the request context
// for DecodedFromContext; on failure the client gets 400 with the issue list
// and the handler never runs.
func Requests(src ContractSource, group, name string, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := negotiate(src, group, name, r)
			if err != nil {
				id := uuid.NewString()
				o.log.Warn().Err(err).
					Str("group", group).Str("contract", name).Str("error_id", id).
					Msg("contract version negotiation failed")
				writeJSON(w, http.StatusBadRequest, ErrorPayload{
					Error: ErrUnknownVersion, ErrorID: id, Group: group, Contract: name,
				})
				return
			}

			start := time.Now()
			v, perr := c.ParseFrom(r.Context(), treaty.JSONReader(r.Body), o.parseOpt)
			if perr != nil {
				o.met.ObserveValidation(group, name, metrics.DirectionRequest, metrics.OutcomeInvalid, time.Since(start))
				o.met.CountIssues(issueCodes(perr))
				id := uuid.NewString()
				views := issueViews(perr)
				o.log.Warn().
					Str("group", group).Str("contract", name).Int("version", c.Version()).
					Str("error_id", id).Int("issues", len(views)).
					Msg("request body violates contract")
				writeJSON(w, http.StatusBadRequest, ErrorPayload{
					Error: ErrValidationFailed, ErrorID: id,
					Group: group, Contract: name, Version: c.Version(),
					Issues: views,
				})
				return
			}
			o.met.ObserveValidation(group, name, metrics.DirectionRequest, metrics.OutcomeOK, time.Since(start))

			next.ServeHTTP(w, r.WithContext(ContextWithDecoded(r.Context(), v)))
		})
	}
}

// WriteValidated checks v against the negotiated version of group/name and
// writes it as JSON with the given status. A violating v is a server defect:
// the client gets 500 with an opaque payload (never the issue list) and the
// violation is logged under the payload's error id.
func WriteValidated(w http.ResponseWriter, r *http.Request, src ContractSource, group, name string, status int, v any, opts ...Option) error {
	o := buildOptions(opts)
	c, err := negotiate(src, group, name, r)
	if err != nil {
		id := uuid.NewString()
		o.log.Warn().Err(err).
			Str("group", group).Str("contract", name).Str("error_id", id).
			Msg("contract version negotiation failed")
		writeJSON(w, http.StatusBadRequest, ErrorPayload{
			Error: ErrUnknownVersion, ErrorID: id, Group: group, Contract: name,
		})
		return err
	}

	start := time.Now()
	verr := c.ValidateValue(r.Context(), v)
	if verr != nil {
		o.met.ObserveValidation(group, name, metrics.DirectionResponse, metrics.OutcomeInvalid, time.Since(start))
		o.met.CountIssues(issueCodes(verr))
		id := uuid.NewString()
		o.log.Error().
			Str("group", group).Str("contract", name).Int("version", c.Version()).
			Str("error_id", id).Int("issues", len(issueCodes(verr))).
			Msg("response violates contract")
		writeJSON(w, http.StatusInternalServerError, ErrorPayload{
			Error: ErrInternalContractViolation, ErrorID: id,
		})
		return verr
	}
	o.met.ObserveValidation(group, name, metrics.DirectionResponse, metrics.OutcomeOK, time.Since(start))

	writeJSON(w, status, v)
	return nil
}

// negotiate picks the contract version for this request: header first, then
// query parameter, then latest.
func negotiate(src ContractSource, group, name string, r *http.Request) (*treaty.Contract, error) {
	raw := r.Header.Get(VersionHeader)
	if raw == "" {
		raw = r.URL.Query().Get(VersionQuery)
	}
	if raw == "" {
		return src.Get(group, name)
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return nil, fmt.Errorf("malformed contract version %q", raw)
	}
	return src.GetVersion(group, name, version)
}

type decodedKey struct{}

// ContextWithDecoded stashes a cast result. Requests does this on success;
// tests and custom middlewares may do it by hand.
func ContextWithDecoded(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, decodedKey{}, v)
}

// DecodedFromContext returns the value the middleware cast from the request
// body. T is map[string]any for plain object contracts, or the bound struct
// type for contracts built with dsl.Bind.
func DecodedFromContext[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(decodedKey{}).(T)
	return v, ok
}

// Decode is DecodedFromContext on the request's context.
func Decode[T any](r *http.Request) (T, bool) {
	return DecodedFromContext[T](r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	gojson.NewEncoder(w).Encode(v)
}

func issueViews(err error) []IssueView {
	iss, ok := treaty.AsIssues(err)
	if !ok {
		return []IssueView{{Path: "/", Code: treaty.CodeParseError, Message: err.Error()}}
	}
	out := make([]IssueView, 0, len(iss))
	for _, it := range iss {
		out = append(out, IssueView{
			Path: it.Path, Code: it.Code, Message: it.Message,
			Hint: it.Hint, Params: it.Params,
		})
	}
	return out
}

func issueCodes(err error) []string {
	iss, ok := treaty.AsIssues(err)
	if !ok {
		return []string{treaty.CodeParseError}
	}
	out := make([]string, 0, len(iss))
	for _, it := range iss {
		out = append(out, it.Code)
	}
	return out
}
