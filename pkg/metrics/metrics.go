// Package metrics holds the Prometheus collectors exported by every process.
// Constructors accept a nil Registerer and return recorders that do nothing.
package metrics

const namespace = "fanjava"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
