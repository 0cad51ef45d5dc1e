//go:build !vips

package avatar

import "errors"

func newVipsResizer() (Resizer, error) {
	return nil, errors.New("vips engine not compiled in, rebuild with -tags vips")
}
