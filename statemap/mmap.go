package statemap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile is a read-only memory mapping of an input trace (spec §5
// "Resources": "The input is mapped read-only for the duration of
// ingest and released at teardown"). It replaces the teacher's raw
// syscall.Mmap call (entitydb/storage/binary/mmap_reader.go) with the
// golang.org/x/sys/unix wrapper, which is the portable form of the same
// call across the platforms x/sys supports.
type mappedFile struct {
	file *os.File
	data []byte
}

func mapFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		return &mappedFile{file: f, data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}

	return &mappedFile{file: f, data: data}, nil
}

func (m *mappedFile) close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
	}
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}
