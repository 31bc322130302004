package retriever

import (
	"fmt"

	"golang.org/x/sys/unix"

	"reelnotes/internal/services"
)

// freeBytes reports the space available to unprivileged users on the
// filesystem holding path.
func freeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

func (r *Retriever) checkFreeSpace(dir string) error {
	if r.cfg.MinFreeMiB <= 0 {
		return nil
	}
	free, err := r.freeSpace(dir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "retrieving", "disk check", "stat temp filesystem", err)
	}
	need := uint64(r.cfg.MinFreeMiB) << 20
	if free < need {
		return services.Wrap(services.ErrConfiguration, "retrieving", "disk check",
			fmt.Sprintf("only %d MiB free under %s, need %d MiB", free>>20, dir, r.cfg.MinFreeMiB), nil)
	}
	return nil
}
