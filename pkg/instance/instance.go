package instance

import (
	"fmt"
	"os"
)

// GetID identifies this process in logs. FANJAVA_INSTANCE_ID wins; otherwise
// the hostname plus pid, which is unique per pod.
func GetID(kind string) string {
	if id := os.Getenv("FANJAVA_INSTANCE_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return fmt.Sprintf("%s-%s-%d", kind, host, os.Getpid())
}
