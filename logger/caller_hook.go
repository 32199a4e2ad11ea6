package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook rewrites the reported caller to the first frame outside this
// package, so log lines point at the venue or controller call site
// instead of the wrapper.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !wrapperFrame(frame.Function) {
			f := frame
			entry.Caller = &f
			return nil
		}
		if !more {
			return nil
		}
	}
}

func wrapperFrame(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "tradekit/logger")
}
