//go:build !linux

package encoder

import "errors"

func setRealtime(priority int) error {
	return errors.New("real-time scheduling requires Linux")
}
