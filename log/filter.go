package log

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// FilterFieldsCore drops fields whose key is listed before they reach core.
// A key ending in '*' drops every key with that prefix, so "transform_*"
// silences all correlation fields the driver adds.
func FilterFieldsCore(core zapcore.Core, dropKeys ...string) zapcore.Core {
	return filterFieldsCore{Core: core, drop: newDropSet(dropKeys)}
}

type dropSet struct {
	keys     map[string]struct{}
	prefixes []string
}

func newDropSet(keys []string) dropSet {
	d := dropSet{keys: map[string]struct{}{}}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		switch {
		case key == "", key == "*":
		case strings.HasSuffix(key, "*"):
			d.prefixes = append(d.prefixes, strings.TrimSuffix(key, "*"))
		default:
			d.keys[key] = struct{}{}
		}
	}
	return d
}

func (d dropSet) empty() bool { return len(d.keys) == 0 && len(d.prefixes) == 0 }

func (d dropSet) drops(key string) bool {
	if _, ok := d.keys[key]; ok {
		return true
	}
	for _, p := range d.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

type filterFieldsCore struct {
	zapcore.Core
	drop dropSet
}

func (c filterFieldsCore) With(fields []zapcore.Field) zapcore.Core {
	return filterFieldsCore{Core: c.Core.With(c.filter(fields)), drop: c.drop}
}

// Check must be overridden so the wrapped core does not register itself with
// the checked entry and write the unfiltered fields.
func (c filterFieldsCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c filterFieldsCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.filter(fields))
}

// filter returns a copy; the caller's slice may be shared with other cores.
func (c filterFieldsCore) filter(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 || c.drop.empty() {
		return fields
	}
	out := make([]zapcore.Field, 0, len(fields))
	for _, field := range fields {
		if !c.drop.drops(field.Key) {
			out = append(out, field)
		}
	}
	return out
}
