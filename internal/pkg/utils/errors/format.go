package errors

import (
	"bufio"
	"fmt"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	Indent = "  "
	Bullet = "- "
)

type FormatOption func(c *FormatConfig)

type FormatConfig struct {
	WithStack   bool
	AsSentences bool
}

// FormatWithStack appends the origin "[file:line]" to each message, if it is known.
func FormatWithStack() FormatOption {
	return func(c *FormatConfig) {
		c.WithStack = true
	}
}

// FormatAsSentences capitalizes each message and terminates it with a dot.
func FormatAsSentences() FormatOption {
	return func(c *FormatConfig) {
		c.AsSentences = true
	}
}

// Format error to a human-readable string, nested errors are formatted as a bullet list.
func Format(err error, opts ...FormatOption) string {
	if err == nil {
		return ""
	}
	c := FormatConfig{}
	for _, o := range opts {
		o(&c)
	}
	w := &writer{config: c}
	w.writeError(0, err)
	return w.out.String()
}

type writer struct {
	config FormatConfig
	out    strings.Builder
}

func (w *writer) clone() *writer {
	return &writer{config: w.config}
}

func (w *writer) writeError(level int, err error) {
	// nolint: errorlint
	switch v := err.(type) {
	case nestedErrorGetter:
		w.writeNested(level, v.MainError(), v.WrappedErrors(), traceOf(err))
	case multiErrorGetter:
		w.writeList(level, v.WrappedErrors())
	default:
		w.writeMessage(level, err.Error(), traceOf(err))
	}
}

func (w *writer) writeNested(level int, main error, errs []error, trace StackTrace) {
	mainWriter := w.clone()
	if len(errs) == 0 {
		mainWriter.writeError(level, main)
		w.write(mainWriter.out.String())
		return
	}

	// Main error is a prefix of the sub errors, the message is without a trailing dot
	mainWriter.config.AsSentences = false
	mainWriter.writeError(level, main)
	prefix := strings.TrimRight(mainWriter.out.String(), ".,:")
	if w.config.AsSentences {
		prefix = capitalize(prefix)
	}
	prefix += ":"

	subWriter := w.clone()
	if len(errs) == 1 {
		subWriter.writeError(level+1, errs[0])
	} else {
		subWriter.writeList(level, errs)
	}
	sub := subWriter.out.String()

	w.write(prefix)
	switch {
	case len(errs) > 1:
		w.write("\n" + sub)
	case len(prefix)+len(sub) > 60 || strings.Contains(sub, "\n"):
		w.write("\n" + strings.Repeat(Indent, level) + Bullet + sub)
	default:
		w.write(" " + sub)
	}
}

func (w *writer) writeList(level int, errs []error) {
	for i, err := range errs {
		if i > 0 {
			w.write("\n")
		}
		w.write(strings.Repeat(Indent, level) + Bullet)
		w.writeError(level+1, err)
	}
}

func (w *writer) writeMessage(level int, msg string, trace StackTrace) {
	if w.config.AsSentences {
		msg = sentence(msg)
	}
	if w.config.WithStack && len(trace) > 0 {
		if pc := trace[0] - 1; runtime.FuncForPC(pc) != nil {
			file, line := runtime.FuncForPC(pc).FileLine(pc)
			msg = fmt.Sprintf("%s [%s:%d]", msg, file, line)
		}
	}

	// Align all lines of a multi-line message
	scanner := bufio.NewScanner(strings.NewReader(msg))
	first := true
	for scanner.Scan() {
		if !first {
			w.write("\n" + strings.Repeat(Indent, level))
		}
		w.write(scanner.Text())
		first = false
	}
}

func (w *writer) write(s string) {
	w.out.WriteString(s)
}

func traceOf(err error) StackTrace {
	if v, ok := err.(stackTracer); ok { // nolint: errorlint
		return v.StackTrace()
	}
	return nil
}

func sentence(s string) string {
	s = capitalize(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	if last, _ := utf8.DecodeLastRuneInString(s); !strings.ContainsRune(".!?:", last) {
		s += "."
	}
	return s
}

func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}
