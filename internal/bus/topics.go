package bus

// MQTT topics shared by the host, both Pi agents, and the dashboard.
const (
	TopicGestures    = "home/gestures"
	TopicMood        = "home/mood"
	TopicPi1Status   = "home/pi1/status"
	TopicPi1Commands = "home/pi1/commands"
	TopicPi2Status   = "home/pi2/status"
	TopicPi2Commands = "home/pi2/commands"
)
