package deploy

import "fmt"

// =============================================================================
// Deployment Modes
// =============================================================================

// Mode selects which roles a deployment carries.
type Mode string

const (
	// ModeAppOnly deploys the app service alone, no TLS sidecar.
	ModeAppOnly Mode = "app-only"

	// ModeAppSidecar deploys the app plus the TLS-terminating sidecar.
	ModeAppSidecar Mode = "app+sidecar"

	// ModeFull deploys the app, the sidecar and every secondary service.
	ModeFull Mode = "full"
)

// DefaultMode is used when the caller selects nothing.
const DefaultMode = ModeAppSidecar

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAppOnly, ModeAppSidecar, ModeFull:
		return Mode(s), nil
	case "":
		return DefaultMode, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadMode, s)
}

// RequiresSidecar reports whether the mode needs a sidecar service.
func (m Mode) RequiresSidecar() bool {
	return m == ModeAppSidecar || m == ModeFull
}

// IncludesSecondaries reports whether secondary services are deployed.
func (m Mode) IncludesSecondaries() bool {
	return m == ModeFull
}
