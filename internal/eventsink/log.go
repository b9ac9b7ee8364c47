package eventsink

import (
	"log"
	"os"
)

// LogSink writes events through the standard library logger, the way the
// rest of this codebase's ancestry logs everywhere it logs at all.
type LogSink struct {
	logger  *log.Logger
	verbose int
}

// NewLogSink creates a LogSink. verbose follows wsdd's traditional -v
// counting: 0 = warnings and errors only, 1 = + info, 2+ = + debug.
func NewLogSink(verbose int) *LogSink {
	return &LogSink{
		logger:  log.New(os.Stderr, "", log.LstdFlags),
		verbose: verbose,
	}
}

func (s *LogSink) Debugf(format string, args ...interface{}) {
	if s.verbose > 1 {
		s.logger.Printf("DEBUG "+format, args...)
	}
}

func (s *LogSink) Infof(format string, args ...interface{}) {
	if s.verbose > 0 {
		s.logger.Printf("INFO "+format, args...)
	}
}

func (s *LogSink) Warnf(format string, args ...interface{}) {
	s.logger.Printf("WARN "+format, args...)
}

func (s *LogSink) Errorf(format string, args ...interface{}) {
	s.logger.Printf("ERROR "+format, args...)
}
