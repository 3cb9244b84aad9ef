//go:build !gocv

package camera

func newGocv(Config) (Source, error) {
	return nil, ErrUnsupported
}
