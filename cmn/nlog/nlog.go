// Package nlog is a small leveled logger: buffered writes, no external
// dependency. Lines carry a timestamp and severity only; the depth
// argument of the internal log function is not used, so no call site
// is printed. Modeled on the teacher's own cmn/nlog
// (a hand-rolled buffered logger, not a wrapper around a third-party
// logging library) -- see DESIGN.md for why that choice is kept here.
package nlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevName = [...]string{"I", "W", "E"}

var (
	mu  sync.Mutex
	out = bufio.NewWriterSize(os.Stderr, 4096)

	lastFlush time.Time
)

// SetOutput redirects all logging; primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = bufio.NewWriterSize(w, 4096)
}

func log(sev severity, depth int, format string, args ...any) {
	var msg string
	if format == "" {
		msg = fmt.Sprintln(args...)
	} else {
		msg = fmt.Sprintf(format, args...)
		if len(msg) == 0 || msg[len(msg)-1] != '\n' {
			msg += "\n"
		}
	}
	_ = depth
	mu.Lock()
	fmt.Fprintf(out, "%s %s %s", time.Now().Format("2006-01-02T15:04:05.000Z07:00"), sevName[sev], msg)
	if sev == sevErr || time.Since(lastFlush) > time.Second {
		out.Flush()
		lastFlush = time.Now()
	}
	mu.Unlock()
}

func Infof(format string, args ...any)  { log(sevInfo, 0, format, args...) }
func Infoln(args ...any)                { log(sevInfo, 0, "%s", fmt.Sprintln(args...)) }
func Warnf(format string, args ...any)  { log(sevWarn, 0, format, args...) }
func Warnln(args ...any)                { log(sevWarn, 0, "%s", fmt.Sprintln(args...)) }
func Errorf(format string, args ...any) { log(sevErr, 0, format, args...) }
func Errorln(args ...any)               { log(sevErr, 0, "%s", fmt.Sprintln(args...)) }

func Flush() {
	mu.Lock()
	out.Flush()
	mu.Unlock()
}
