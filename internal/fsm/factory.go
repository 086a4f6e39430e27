package fsm

import "github.com/haltline/intervention-controller/internal/domain"

// StateFromTag constructs the State record matching a persisted phase-state
// tag. Used by the registry on rehydrate and by Onboarding for enrollment.
func StateFromTag(tag domain.PhaseStateTag) State {
	switch tag {
	case domain.StateOnboarding:
		return Onboarding{}
	case domain.StateTracking:
		return Tracking{}
	case domain.StateGoalsSetting:
		return GoalsSetting{}
	case domain.StateBuffer:
		return Buffer{}
	case domain.StateExecutionRun:
		return ExecutionRun{}
	case domain.StateRelapse:
		return Relapse{}
	case domain.StateClosing:
		return Closing{}
	default:
		return Onboarding{}
	}
}
