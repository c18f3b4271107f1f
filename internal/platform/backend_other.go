//go:build !linux && !darwin

package platform

func newBackend(Options) (Backend, error) {
	return nil, ErrUnsupported
}
