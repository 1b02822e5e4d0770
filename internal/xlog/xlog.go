package xlog

import "log"

// Logger is a thin wrapper around the standard logger that prefixes every
// line with a bracketed component name, matching the teacher's own
// "[Broker] ..."/"[Partition %d] ..." convention.
type Logger struct {
	prefix string
}

// New returns a Logger that prefixes lines with "[name] ".
func New(name string) *Logger {
	return &Logger{prefix: "[" + name + "] "}
}

func (l *Logger) Printf(format string, args ...any) {
	log.Printf(l.prefix+format, args...)
}

func (l *Logger) Print(args ...any) {
	log.Print(append([]any{l.prefix}, args...)...)
}

func (l *Logger) Fatalf(format string, args ...any) {
	log.Fatalf(l.prefix+format, args...)
}
