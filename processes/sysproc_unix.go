//go:build unix

package processes

import (
	"errors"
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so terminal signals aimed at the
// host program do not reach it directly. The registry decides when it is killed.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
