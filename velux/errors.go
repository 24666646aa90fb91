package velux

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrAuthentication covers rejected credentials and expired or missing
	// tokens. Polling keeps retrying on schedule when it sees this.
	ErrAuthentication = Error("velux cloud authentication failed")
	// ErrTransport covers network, timeout and protocol failures, including
	// responses that could not be parsed.
	ErrTransport = Error("velux cloud transport failure")
)
