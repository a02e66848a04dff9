//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package cosched

// NewPoller returns the platform Poller.
func NewPoller() (Poller, error) {
	return nil, ErrPollUnsupported
}
