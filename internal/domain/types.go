// Package domain holds the plain data types shared by every layer of the
// intervention controller: enrolled users, the immutable component
// catalog, per-user component delivery history, and controller phase
// state.
package domain

import "time"

// ActivityLevel groups a participant by how much support they need.
type ActivityLevel string

const (
	ActivityLow  ActivityLevel = "low"
	ActivityHigh ActivityLevel = "high"
)

// Daypart is one of the three configured send windows.
type Daypart string

const (
	Morning   Daypart = "morning"
	Afternoon Daypart = "afternoon"
	Evening   Daypart = "evening"
)

// User is a single enrolled participant.
type User struct {
	ID               string        `json:"id" db:"id"`
	StartDate        time.Time     `json:"start_date" db:"start_date"`
	QuitDate         time.Time     `json:"quit_date" db:"quit_date"`
	PreferredWeekday time.Weekday  `json:"preferred_weekday" db:"preferred_weekday"`
	PreferredDaypart Daypart       `json:"preferred_daypart" db:"preferred_daypart"`
	ActivityLevel    ActivityLevel `json:"activity_level" db:"activity_level"`
}

// ComponentType distinguishes conversational dialogs from one-way pushes.
type ComponentType string

const (
	TypeDialog       ComponentType = "dialog"
	TypeNotification ComponentType = "notification"
)

// ComponentName is a symbolic name drawn from the closed catalog below.
type ComponentName string

const (
	PreparationIntroduction ComponentName = "preparation_introduction"
	ProfileCreation         ComponentName = "profile_creation"
	MedicationTalk          ComponentName = "medication_talk"
	TrackBehavior           ComponentName = "track_behavior"
	FutureSelfLong          ComponentName = "future_self_long"
	FutureSelfShort         ComponentName = "future_self_short"
	GoalSetting             ComponentName = "goal_setting"
	FirstAidKitVideo        ComponentName = "first_aid_kit_video"
	ExecutionIntroduction   ComponentName = "execution_introduction"
	GeneralActivity         ComponentName = "general_activity"
	WeeklyReflection        ComponentName = "weekly_reflection"
	ClosingDialog           ComponentName = "closing_dialog"

	RelapseDialog         ComponentName = "relapse_dialog"
	RelapseDialogHRS      ComponentName = "relapse_dialog_hrs"
	RelapseDialogLapse    ComponentName = "relapse_dialog_lapse"
	RelapseDialogRelapse  ComponentName = "relapse_dialog_relapse"
	RelapseDialogPA       ComponentName = "relapse_dialog_pa"

	TrackNotification      ComponentName = "track_notification"
	PANotification         ComponentName = "pa_notification"
	BeforeQuitNotification ComponentName = "before_quit_notification"
	QuitDateNotification   ComponentName = "quit_date_notification"
)

// Component is one row of the immutable runtime catalog.
type Component struct {
	ID      int64         `json:"id" db:"id"`
	Name    ComponentName `json:"name" db:"name"`
	Trigger string        `json:"trigger" db:"trigger"`
	Type    ComponentType `json:"type" db:"type"`
}

// Phase identifies which branch of the intervention a ComponentState
// belongs to.
type Phase int

const (
	PhasePreparation Phase = 1
	PhaseExecution   Phase = 2
	PhaseLapse       Phase = 3
)

// ComponentState is one append-only row recording a scheduling decision for
// a (user, component) pair. The set of rows for a pair is totally ordered
// by LastTouched; the most recent row wins for completion and scheduling
// queries.
type ComponentState struct {
	ID              int64     `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	ComponentID     int64     `json:"component_id" db:"component_id"`
	Phase           Phase     `json:"phase" db:"phase"`
	Completed       bool      `json:"completed" db:"completed"`
	LastTouched     time.Time `json:"last_touched" db:"last_touched"`
	LastPart        int       `json:"last_part" db:"last_part"`
	NextPlannedDate time.Time `json:"next_planned_date" db:"next_planned_date"`
	TaskHandle      string    `json:"task_handle" db:"task_handle"` // empty if none pending
}

// PhaseStateTag names one of the seven controller phase states.
type PhaseStateTag string

const (
	StateOnboarding    PhaseStateTag = "onboarding"
	StateTracking      PhaseStateTag = "tracking"
	StateGoalsSetting  PhaseStateTag = "goals-setting"
	StateBuffer        PhaseStateTag = "buffer"
	StateExecutionRun  PhaseStateTag = "execution-run"
	StateRelapse       PhaseStateTag = "relapse"
	StateClosing       PhaseStateTag = "closing"
)

// ControllerState is the persisted phase-state cursor for one user.
type ControllerState struct {
	UserID        string        `json:"user_id" db:"user_id"`
	PhaseState    PhaseStateTag `json:"phase_state" db:"phase_state"`
	ExecutionWeek int           `json:"execution_week" db:"execution_week"`
}
