//go:build !windows

package pathnorm

func nativeSystem() System { return POSIX }
