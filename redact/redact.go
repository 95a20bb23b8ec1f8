// Package redact masks personally identifiable fields in log output.
package redact

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	Redaction = "***"
	Separator = ";"
)

// PIIFields are the fields masked by default.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// Filter replaces the value of every "field=value" pair, up to the
// separator, with a fixed redaction.
type Filter struct {
	re          *regexp.Regexp
	replacement string
}

func NewFilter(fields []string, redaction, separator string) *Filter {
	if len(fields) == 0 {
		return &Filter{}
	}

	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = regexp.QuoteMeta(field)
	}

	value := ".*"
	if separator != "" {
		value = "[^" + regexp.QuoteMeta(separator) + "]*"
	}

	return &Filter{
		re:          regexp.MustCompile(fmt.Sprintf("(?P<field>%s)=%s", strings.Join(quoted, "|"), value)),
		replacement: "${field}=" + strings.ReplaceAll(redaction, "$", "$$"),
	}
}

func (f *Filter) Apply(message string) string {
	if f.re == nil {
		return message
	}
	return f.re.ReplaceAllString(message, f.replacement)
}

// FilterDatum returns message with the values of fields obfuscated.
func FilterDatum(fields []string, redaction, message, separator string) string {
	return NewFilter(fields, redaction, separator).Apply(message)
}

// Handler is a slog.Handler that filters messages and string attributes
// and masks attributes named after a PII field outright.
type Handler struct {
	next   slog.Handler
	filter *Filter
	keys   map[string]struct{}
}

func NewHandler(next slog.Handler, fields []string) *Handler {
	keys := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		keys[strings.ToLower(field)] = struct{}{}
	}
	return &Handler{
		next:   next,
		filter: NewFilter(fields, Redaction, Separator),
		keys:   keys,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.filter.Apply(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &Handler{next: h.next.WithAttrs(redacted), filter: h.filter, keys: h.keys}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), filter: h.filter, keys: h.keys}
}

func (h *Handler) redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redaction)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.filter.Apply(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = h.redact(ga)
		}
		return slog.Group(a.Key, redacted...)
	}
	return a
}
