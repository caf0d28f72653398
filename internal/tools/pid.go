package tools

import (
	"errors"
	"os"
	"strconv"
)

// WritePidFile writes PID of current process, noop when path is empty.
func WritePidFile(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// RemovePidFile removes file written by WritePidFile.
func RemovePidFile(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	err := os.Remove(pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
