package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

const redactedValue = "[redacted]"

// sensitiveKeys never reach a log sink with their value intact. Vendor
// tokens travel through request logs and error details, so string values
// are matched by substring of the lowercased key.
var sensitiveKeys = []string{"token", "secret", "password", "authorization", "api_key", "apikey"}

func redact(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	key := strings.ToLower(attr.Key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return slog.String(attr.Key, redactedValue)
		}
	}
	return attr
}

// jsonReplacer shortens the built-in keys to ts/level/msg and emits UTC
// timestamps so the file sink lines up with `tipflow logs --run`.
func jsonReplacer(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
		}
		attr.Key = "ts"
		return attr
	case slog.LevelKey:
		return slog.String("level", strings.ToLower(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "msg"
		return attr
	case slog.SourceKey:
		src, ok := attr.Value.Any().(*slog.Source)
		if !ok || src == nil {
			return attr
		}
		return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
	}
	return redact(attr)
}

func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: jsonReplacer,
	})
}
