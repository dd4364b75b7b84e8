package formatting

// MaskSecret hides a secret value for display, keeping only whether it is
// set.
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "********"
}
