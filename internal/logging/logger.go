package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON slog logger configured at the provided level. If the
// level string is invalid it defaults to info.
func New(level string) *slog.Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(level string, w io.Writer) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// Identifier masks a phone number or email address so it can be logged.
// "+998901234567" becomes "+99890*****67" and "sardor@gmail.com" becomes "s*****@gmail.com".
func Identifier(v string) slog.Attr {
	return slog.String("identifier", Mask(v))
}

// Mask hides the middle of an identifier.
func Mask(v string) string {
	if at := strings.IndexByte(v, '@'); at > 0 {
		return v[:1] + strings.Repeat("*", 5) + v[at:]
	}
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	keep := len(v) / 2
	if keep > 6 {
		keep = 6
	}
	return v[:keep] + strings.Repeat("*", len(v)-keep-2) + v[len(v)-2:]
}
