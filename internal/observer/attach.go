package observer

import (
	"github.com/talentscout/sessiond/internal/session"
	"github.com/talentscout/sessiond/pkg/models"
)

// orchestratorSource adapts a live orchestrator to the session endpoints.
type orchestratorSource struct {
	o *session.Orchestrator
}

func (s orchestratorSource) Info() SessionInfo {
	state := s.o.State()
	cheating, absent := s.o.Flags()
	active := state == session.StateStarting ||
		state == session.StateRunning ||
		state == session.StateEnding
	return SessionInfo{
		Active:     active,
		State:      state.String(),
		Remaining:  s.o.Remaining(),
		Violations: s.o.ViolationCount(),
		Cheating:   cheating,
		Absence:    absent,
	}
}

func (s orchestratorSource) Metrics() models.Stats {
	return s.o.Snapshot()
}

// SessionEvents returns lifecycle hooks that feed the event stream. Pass
// the result to session.Options before building the orchestrator, then
// call Attach with the built orchestrator.
func (s *Service) SessionEvents() session.Events {
	return session.Events{
		OnState: func(state session.State) {
			s.PublishState(state.String())
			if src := s.source(); src != nil {
				s.PublishMetrics(src.Metrics())
			}
		},
		OnViolation: s.PublishViolation,
		OnWarning:   s.PublishWarning,
	}
}

// Attach makes o the session behind the status and metrics endpoints.
// Attaching a later session replaces the earlier one.
func (s *Service) Attach(o *session.Orchestrator) {
	s.setSource(orchestratorSource{o: o})
}
