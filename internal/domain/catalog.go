package domain

// Day offsets and durations fixed by the intervention design. All are
// counted in whole civil days from a user's StartDate unless noted
// otherwise.
const (
	FutureSelfIntroDay      = 8   // start_date + 8: future_self_short target day
	TrackingDurationDays    = 10  // tracking phase minimum length
	GoalSettingDay          = 9   // start_date + 9: goal_setting target day
	PreparationGADay        = 14  // start_date + 14: first buffer general_activity, conditional
	MaxPreparationDuration  = 21  // start_date + 21: second buffer general_activity, conditional
	ExecutionDurationDays   = 84  // 12 weeks, counted from quit_date
	ExecutionWeeksTotal     = 12
	WeekFutureSelfShortA    = 3
	WeekFutureSelfShortB    = 8
)

// Catalog is the closed, immutable set of components known at runtime. The
// trigger string is what the front end understands; it is opaque to the
// controller beyond being passed through verbatim.
var Catalog = []Component{
	{Name: PreparationIntroduction, Trigger: "preparation_introduction", Type: TypeDialog},
	{Name: ProfileCreation, Trigger: "profile_creation", Type: TypeDialog},
	{Name: MedicationTalk, Trigger: "medication_talk", Type: TypeDialog},
	{Name: TrackBehavior, Trigger: "track_behavior", Type: TypeDialog},
	{Name: FutureSelfLong, Trigger: "future_self_long", Type: TypeDialog},
	{Name: FutureSelfShort, Trigger: "future_self_short", Type: TypeDialog},
	{Name: GoalSetting, Trigger: "goal_setting", Type: TypeDialog},
	{Name: FirstAidKitVideo, Trigger: "first_aid_kit_video", Type: TypeDialog},
	{Name: ExecutionIntroduction, Trigger: "execution_introduction", Type: TypeDialog},
	{Name: GeneralActivity, Trigger: "general_activity", Type: TypeDialog},
	{Name: WeeklyReflection, Trigger: "weekly_reflection", Type: TypeDialog},
	{Name: ClosingDialog, Trigger: "closing_dialog", Type: TypeDialog},
	{Name: RelapseDialog, Trigger: "relapse_dialog", Type: TypeDialog},
	{Name: RelapseDialogHRS, Trigger: "relapse_dialog_hrs", Type: TypeDialog},
	{Name: RelapseDialogLapse, Trigger: "relapse_dialog_lapse", Type: TypeDialog},
	{Name: RelapseDialogRelapse, Trigger: "relapse_dialog_relapse", Type: TypeDialog},
	{Name: RelapseDialogPA, Trigger: "relapse_dialog_pa", Type: TypeDialog},
	{Name: TrackNotification, Trigger: "track_notification", Type: TypeNotification},
	{Name: PANotification, Trigger: "pa_notification", Type: TypeNotification},
	{Name: BeforeQuitNotification, Trigger: "before_quit_notification", Type: TypeNotification},
	{Name: QuitDateNotification, Trigger: "quit_date_notification", Type: TypeNotification},
}

// RelapseComponents is the set of components whose completion is handled
// uniformly by the relapse phase state.
var RelapseComponents = map[ComponentName]bool{
	RelapseDialog:        true,
	RelapseDialogHRS:     true,
	RelapseDialogLapse:   true,
	RelapseDialogRelapse: true,
	RelapseDialogPA:      true,
}
