package scenario

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
)

// diagnosticLines is the number of trailing kernel output lines kept for
// error reports.
const diagnosticLines = 16

// kernelPrefix marks kernel output lines. It is injected by the
// kfmt.PrefixWriter installed in front of kernelLog.
const kernelPrefix = "[kernel] "

// kernelLog receives kernel output via kfmt.SetOutputSink. Complete lines are
// forwarded to the logger and the most recent ones are kept for diagnostics.
type kernelLog struct {
	logger  *slog.Logger
	pending []byte
	tail    []string
}

func (l *kernelLog) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}

		l.emit(string(l.pending[:idx]))
		l.pending = l.pending[idx+1:]
	}
	return len(p), nil
}

// Flush emits any partial line.
func (l *kernelLog) Flush() {
	if len(l.pending) != 0 {
		l.emit(string(l.pending))
		l.pending = l.pending[:0]
	}
}

func (l *kernelLog) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(strings.TrimPrefix(line, kernelPrefix)) == "" {
		return
	}

	l.logger.Log(context.Background(), slog.LevelDebug, line, "source", "kernel")

	l.tail = append(l.tail, line)
	if len(l.tail) > diagnosticLines {
		l.tail = l.tail[len(l.tail)-diagnosticLines:]
	}
}
