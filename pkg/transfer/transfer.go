package transfer

import (
	"io"
	"os"
)

// CopyFile copies src to dst through a temporary file, so dst is never
// observed half written. Rename doesn't work across different mount points,
// hence the copy.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	si, err := in.Stat()
	if err != nil {
		return
	}

	tmp := dst + ".part"

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, si.Mode().Perm())
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tmp)
		}
	}()

	_, err = io.Copy(out, in)
	if err != nil {
		return
	}

	err = out.Sync()
	if err != nil {
		return
	}

	err = out.Close()
	if err != nil {
		return
	}

	return os.Rename(tmp, dst)
}
