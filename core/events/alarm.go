package events

// KindAlarmFired identifies an alarm callback reaching the assistant.
const KindAlarmFired Kind = "alarm.fired"

// AlarmFired marks an external alarm going off. SoundPlayed is false when the
// alarm sound could not be played.
type AlarmFired struct {
	Base
	AlarmID     string
	SoundPlayed bool
}

// NewAlarmFired creates an alarm fired event.
func NewAlarmFired(alarmID string, soundPlayed bool) AlarmFired {
	return AlarmFired{Base: NewBase(KindAlarmFired), AlarmID: alarmID, SoundPlayed: soundPlayed}
}
