package telegram

import "tgrab/pkg/errors"

// SessionFactory builds an authenticated session from API credentials.
// Transport backends register themselves here at init time; the core stays
// independent of any particular protocol implementation.
var SessionFactory func(apiID int, apiHash, sessionName string) (Session, error)

// NewSession builds a session through the registered factory. Returns a
// resolution error when no transport backend is linked into the build.
func NewSession(apiID int, apiHash, sessionName string) (Session, error) {
	if SessionFactory == nil {
		return nil, errors.New(errors.ErrorTypeResolution, "no message-source transport linked into this build")
	}
	if apiID <= 0 || apiHash == "" {
		return nil, errors.New(errors.ErrorTypeResolution, "message-source credentials not configured")
	}
	return SessionFactory(apiID, apiHash, sessionName)
}
