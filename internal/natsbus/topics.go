package natsbus

import "fmt"

// Topic conventions. A registry record may carry an explicit inbox topic;
// when it does not, the per-agent conventions below apply.

func TriggerTopic(agentName, recordTopic string) string {
	if recordTopic != "" {
		return recordTopic
	}
	return fmt.Sprintf("%s.trigger", agentName)
}

func EventsTopic(agentName string) string {
	return fmt.Sprintf("%s.events", agentName)
}
