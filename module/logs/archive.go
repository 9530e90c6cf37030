package logs

import (
	"archive/tar"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pierrec/lz4"

	"github.com/onflow/localnet/model/localnet"
)

// WriteArchive writes the dumped logs as an lz4 compressed tar stream, one <node>.log entry per node.
func WriteArchive(w io.Writer, dump map[localnet.NodeID][]byte) error {
	zw := lz4.NewWriter(w)
	tw := tar.NewWriter(zw)

	ids := make([]localnet.NodeID, 0, len(dump))
	for id := range dump {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := time.Now()
	for _, id := range ids {
		data := dump[id]
		header := &tar.Header{
			Name:    id.String() + ".log",
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("could not write archive header for %s: %w", id, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("could not write archive entry for %s: %w", id, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("could not close archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not close compressor: %w", err)
	}
	return nil
}
