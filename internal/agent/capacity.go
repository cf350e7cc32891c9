package agent

import "strings"

// IsCapacityError classifies a reasoning-engine failure as a capacity-class
// problem (quota or rate exhaustion) based on its message. Capacity failures
// divert the turn to the fallback responder; everything else is a hard error.
func IsCapacityError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests")
}
