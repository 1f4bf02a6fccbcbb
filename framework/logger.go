package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

type teeLogger []Logger

func (t teeLogger) Printf(message string, args ...interface{}) {
	for _, l := range t {
		l.Printf(message, args...)
	}
}

// Tee returns a Logger that writes every message to all of the given loggers. Nil loggers
// are ignored.
func Tee(loggers ...Logger) Logger {
	var t teeLogger
	for _, l := range loggers {
		if l != nil {
			t = append(t, l)
		}
	}
	if len(t) == 0 {
		return NullLogger()
	}
	if len(t) == 1 {
		return t[0]
	}
	return t
}

type prefixLogger struct {
	prefix string
	inner  Logger
}

func (p prefixLogger) Printf(message string, args ...interface{}) {
	p.inner.Printf("%s%s", p.prefix, fmt.Sprintf(message, args...))
}

// WithPrefix returns a Logger that prepends prefix to every message.
func WithPrefix(l Logger, prefix string) Logger {
	if l == nil {
		return NullLogger()
	}
	return prefixLogger{prefix: prefix, inner: l}
}

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

// Dump writes the captured messages to dest. Multi-line messages, such as captured server
// output, keep the prefix on every line.
func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		lines := strings.Split(strings.TrimRight(m.Message, "\n"), "\n")
		fmt.Fprintf(dest, "%s[%s] %s\n", prefix, m.Time.Format(timestampFormat), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(dest, "%s    %s\n", prefix, line)
		}
	}
}
