package study

import "fmt"

const (
	noParticipantsText  = "No participants found in the video call. Join the video call first to start a study session."
	noActiveSessionText = "No active study session found for this group."
)

func startedText(participants int, mention string) string {
	return fmt.Sprintf("Study session started! Tracking study time for %d participant%s currently in the video call.\n\n"+
		"Auto-stop: the session ends automatically when everyone leaves the call.\n"+
		"Real-time tracking: leaving the call stops your clock.\n\n"+
		"Use '%s end study' to stop the session.", participants, plural(participants), mention)
}

func alreadyActiveText(minutes int, mention string) string {
	return fmt.Sprintf("A study session is already running (%d minute%s so far). Use '%s study status' to check it or '%s end study' to stop it.",
		minutes, plural(minutes), mention, mention)
}

func endedText(minutes, recorded, stayed int) string {
	return fmt.Sprintf("Study session ended! Duration: %d minute%s.\n\n"+
		"%s\n"+
		"Participants who stayed for the full session: %d\n\n"+
		"Great work everyone!", minutes, plural(minutes), recordedLine(recorded), stayed)
}

func autoEndedText(minutes, recorded int) string {
	return fmt.Sprintf("Study session ended automatically.\n\n"+
		"Duration: %d minute%s\n"+
		"Everyone left the video call.\n\n"+
		"%s\n\n"+
		"Great work everyone!", minutes, plural(minutes), recordedLine(recorded))
}

// recordedLine counts participants with a saved record. Time under a minute is never saved.
func recordedLine(recorded int) string {
	if recorded == 0 {
		return "No study time was recorded. Sessions shorter than a minute are not saved."
	}
	return fmt.Sprintf("Study time recorded for %d participant%s.", recorded, plural(recorded))
}

func noSessionStatusText(mention string) string {
	return fmt.Sprintf("No active study session found for this group. Use '%s start study' to begin tracking.", mention)
}

func statusText(minutes, active, inCall int) string {
	return fmt.Sprintf("Study session is active!\n\n"+
		"Duration: %d minute%s\n"+
		"Active participants: %d\n"+
		"Currently in call: %d\n\n"+
		"The session ends automatically when everyone leaves the call.", minutes, plural(minutes), active, inCall)
}

func helpText(mention string) string {
	return fmt.Sprintf("Study Bot commands:\n\n"+
		"%[1]s start study - begin tracking study time\n"+
		"%[1]s end study - stop tracking study time\n"+
		"%[1]s study status - check the current session\n\n"+
		"Leaving the call stops your clock, and the session ends when everyone has left. "+
		"Join the video call first, then start the study session.", mention)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
