package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/lifecycle"
	"github.com/onflow/localnet/module/logs"
)

var (
	flagArchive string
	flagOutDir  string
)

var dumpLogsCmd = &cobra.Command{
	Use:   "dump-logs",
	Short: "Print the captured output of every node of the run",
	Long: `Prints the captured stdout and stderr of every node, in topology order. Works while the run is up and
after it stopped. With --archive the logs are written as an lz4 compressed tar archive, with --out as one
file per node.`,
	RunE: dumpLogs,
}

func init() {
	rootCmd.AddCommand(dumpLogsCmd)

	dumpLogsCmd.Flags().StringVar(&flagArchive, "archive", "", "write the logs to this .tar.lz4 archive")
	dumpLogsCmd.Flags().StringVar(&flagOutDir, "out", "", "write one <node>.log file per node to this directory")
	dumpLogsCmd.MarkFlagsMutuallyExclusive("archive", "out")
}

func dumpLogs(cmd *cobra.Command, _ []string) error {
	controller := lifecycle.NewController(log, cfg)
	if err := controller.OpenReadOnly(); err != nil {
		return err
	}
	dump, err := controller.DumpLogs()
	if err != nil {
		return err
	}

	switch {
	case flagArchive != "":
		err = writeArchive(flagArchive, dump)
	case flagOutDir != "":
		err = writeLogFiles(flagOutDir, dump)
	default:
		err = printLogs(cmd.OutOrStdout(), controller.Topology(), dump)
	}
	if err != nil {
		return err
	}

	var total int64
	for id, data := range dump {
		total += int64(len(data))
		log.Debug().Str("node", id.String()).Str("size", units.HumanSize(float64(len(data)))).Msg("dumped node log")
	}
	log.Info().Int("nodes", len(dump)).Str("size", units.HumanSize(float64(total))).Msg("node logs dumped")
	return nil
}

func writeArchive(path string, dump map[localnet.NodeID][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create archive: %w", err)
	}
	if err := logs.WriteArchive(f, dump); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeLogFiles(dir string, dump map[localnet.NodeID][]byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	for id, data := range dump {
		if err := os.WriteFile(filepath.Join(dir, id.String()+".log"), data, 0644); err != nil {
			return fmt.Errorf("could not write log of %s: %w", id, err)
		}
	}
	return nil
}

func printLogs(w io.Writer, topo *localnet.Topology, dump map[localnet.NodeID][]byte) error {
	for _, spec := range topo.Nodes {
		data, ok := dump[spec.ID]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "==> %s (%s) <==\n", spec.ID, spec.Role); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if len(data) > 0 && data[len(data)-1] != '\n' {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}
