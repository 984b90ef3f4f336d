package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	maskedField   = "[REDACTED]"
	maskedPattern = "[REDACTED:pattern]"
)

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as "[REDACTED:<len>]".
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// rules decides what gets masked. A nil *rules masks nothing.
type rules struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func compileRules(cfg RedactionConfig) (*rules, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	r := &rules{keys: make(map[string]struct{}, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		r.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *rules) key(k string) bool {
	if r == nil {
		return false
	}
	_, ok := r.keys[strings.ToLower(k)]
	return ok
}

// value returns the replacement for a string field, if any.
func (r *rules) value(k, v string) (string, bool) {
	if r == nil {
		return "", false
	}
	if r.key(k) {
		return maskedField, true
	}
	for _, re := range r.patterns {
		if re.MatchString(v) {
			return maskedPattern, true
		}
	}
	return "", false
}

// RedactingEncoder masks sensitive keys and values before they reach the
// wrapped encoder. Fields passed with With and per-call fields are treated
// the same.
type RedactingEncoder struct {
	zapcore.Encoder
	rules *rules
}

// NewRedactingEncoder wraps base with the redaction rules in cfg.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	r, err := compileRules(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, rules: r}, nil
}

func (e *RedactingEncoder) AddString(key, val string) {
	if masked, ok := e.rules.value(key, val); ok {
		val = masked
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if masked, ok := e.rules.value(key, string(val)); ok {
		e.Encoder.AddString(key, masked)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.rules.key(key) {
		e.Encoder.AddString(key, maskedField)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.rules.key(key) {
		e.Encoder.AddString(key, maskedField)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.rules == nil {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	c := &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
	for _, f := range fields {
		f.AddTo(c)
	}
	return c.Encoder.EncodeEntry(ent, nil)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
}
