//go:build !linux

package process

func SetMemoryLimit(pid int, limit uint64) error {
	return ErrMemoryLimitUnsupported
}
