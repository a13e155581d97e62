// Package observability starts the process-wide tracing and profiling
// components and tears them down in reverse order.
package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

// Component selects what Start brings up.
type Component int

const (
	Tracing Component = iota + 1
	ContinuousProfiling
	DebugServer
)

func (c Component) String() string {
	switch c {
	case Tracing:
		return "uptrace"
	case ContinuousProfiling:
		return "pyroscope"
	case DebugServer:
		return "pprof"
	default:
		return fmt.Sprintf("component(%d)", int(c))
	}
}

type stopper struct {
	name string
	stop func(context.Context) error
}

type Stack struct {
	logger   *logging.Logger
	stoppers []stopper
}

// Start brings up each requested component. Disabled components are
// logged and skipped. On error anything already started is stopped.
func Start(ctx context.Context, cfg config.Config, logger *logging.Logger, components ...Component) (*Stack, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Stack{logger: logger.Named("observability")}

	for _, c := range components {
		var (
			stop func(context.Context) error
			err  error
		)
		switch c {
		case Tracing:
			stop, err = startTracing(cfg, s.logger)
		case ContinuousProfiling:
			stop, err = startProfiler(cfg, s.logger)
		case DebugServer:
			stop, err = startDebugServer(cfg, s.logger)
		default:
			err = fmt.Errorf("unknown component %d", int(c))
		}
		if err != nil {
			_ = s.Shutdown(ctx)
			return nil, fmt.Errorf("start %s: %w", c, err)
		}
		if stop != nil {
			s.stoppers = append(s.stoppers, stopper{name: c.String(), stop: stop})
		}
	}
	return s, nil
}

// Running lists started components in start order.
func (s *Stack) Running() []string {
	names := make([]string, 0, len(s.stoppers))
	for _, st := range s.stoppers {
		names = append(names, st.name)
	}
	return names
}

func (s *Stack) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(s.stoppers) - 1; i >= 0; i-- {
		st := s.stoppers[i]
		if err := st.stop(ctx); err != nil {
			s.logger.Warn("component stop failed", "component", st.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
		}
	}
	s.stoppers = nil
	return errors.Join(errs...)
}
