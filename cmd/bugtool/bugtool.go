package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	"github.com/shirou/gopsutil/v3/disk"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/bak/cmd/plan"
	"github.com/sidkik/bak/cmd/util"
	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/resolve"
	"github.com/sidkik/bak/pkg/transfer"
	"github.com/sidkik/bak/pkg/version"
)

// Mocked out for unit testing.
var (
	fs           = afero.NewOsFs()
	partitions   = disk.Partitions
	rsyncVersion = transfer.Version
)

// New creates a new `bug-tool` command.
func New() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bug-tool",
		Short: "Generate an archive for debugging bak",
		Run:   func(_ *cobra.Command, _ []string) { main(out) },
	}
	cmd.Flags().StringVar(&out, "out", "", "path for archive")
	return cmd
}

func main(out string) {
	tmpdir, err := afero.TempDir(fs, "", "bak-bug-tool")
	if err != nil {
		err = errors.NewFriendlyError("Failed to create out directory:\n%s", err)
		util.HandleFatalError(err)
	}

	// Wrap defer in a function to handle errors from fs.RemoveAll().
	defer func() {
		err := fs.RemoveAll(tmpdir)
		if err != nil {
			util.HandleFatalError(err)
		}
	}()

	setupInfo(tmpdir)

	if out == "" {
		out = fmt.Sprintf("bak-bug-info-%s.tar.gz",
			time.Now().Format("Jan_02_2006-15-04-05"))
	}
	if err := tarDirectory(tmpdir, out); err != nil {
		err = errors.NewFriendlyError("Failed to tar:\n%s", err)
		util.HandleFatalError(err)
	}

	msg := `Created bug information archive at '%s'.
You may want to edit the archive before sharing it, since paths can be sensitive.
The archive contains:
 * The bak config file.
 * The push and pull plans for the default mounts.
 * The mounted partitions.
 * The version of bak and rsync.
`
	fmt.Printf(msg, out)
}

func setupInfo(root string) {
	if err := setupVersion(root); err != nil {
		log.WithError(err).Warn("Failed to setup version info")
	}

	if err := setupPartitions(root); err != nil {
		log.WithError(err).Warn("Failed to setup partitions")
	}

	cfg, err := util.LoadConfig()
	if err != nil {
		log.WithError(err).Error("Failed to parse config")
		return
	}

	if err := setupConfig(root, cfg.GetPath()); err != nil {
		log.WithError(err).Warn("Failed to setup config")
	}

	if err := setupPlans(root, cfg); err != nil {
		log.WithError(err).Warn("Failed to setup plans")
	}
}

func setupConfig(root, cfgPath string) error {
	in, err := fs.Open(cfgPath)
	if err != nil {
		return errors.WithContext(err, "open config")
	}
	defer in.Close()

	out, err := fs.Create(filepath.Join(root, "config.yaml"))
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.WithContext(err, "copy")
	}
	return nil
}

// setupPlans writes the plans for the default mounts. A plan that fails to
// resolve is recorded as its error, since that's usually what's being
// debugged.
func setupPlans(root string, cfg config.Config) error {
	for _, d := range []resolve.Direction{resolve.Push, resolve.Pull} {
		var contents []byte
		if result, err := plan.Make(cfg, d, nil); err != nil {
			contents = []byte(fmt.Sprintf("error: %s\n", err))
		} else if contents, err = yaml.Marshal(result); err != nil {
			log.WithError(err).WithField("direction", d).Warn("Failed to marshal plan")
			contents = []byte(fmt.Sprintf("%+v\n", result))
		}

		path := filepath.Join(root, fmt.Sprintf("plan-%s.yaml", d))
		if err := afero.WriteFile(fs, path, contents, 0644); err != nil {
			return errors.WithContext(err, "write")
		}
	}
	return nil
}

func setupPartitions(root string) error {
	mounted, err := partitions(true)
	if err != nil {
		return errors.WithContext(err, "list partitions")
	}

	partitionsBytes, err := yaml.Marshal(mounted)
	if err != nil {
		log.WithError(err).Warn("Failed to marshal partitions")
		partitionsBytes = []byte(fmt.Sprintf("%+v\n", mounted))
	}

	if err := afero.WriteFile(fs, filepath.Join(root, "partitions.yaml"), partitionsBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func setupVersion(root string) error {
	out, err := fs.Create(filepath.Join(root, "version"))
	if err != nil {
		return errors.WithContext(err, "create")
	}
	defer out.Close()

	fmt.Fprintf(out, "bak version:   %s\n", version.Get())
	v, err := rsyncVersion(context.Background())
	if err != nil {
		fmt.Fprintf(out, "rsync version: unknown (%s)\n", err)
		return nil
	}
	fmt.Fprintf(out, "rsync version: %s\n", v)
	return nil
}

func tarDirectory(src, outPath string) error {
	out, err := fs.Create(outPath)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	return afero.Walk(fs, src, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, fi.Name())
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("make header %s", file))
		}

		relPath, err := filepath.Rel(src, file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("get relative path of %s to %s", file, src))
		}

		header.Name = filepath.Join("bak-bug-info", relPath)
		if err := tw.WriteHeader(header); err != nil {
			return errors.WithContext(err, fmt.Sprintf("write %s header", file))
		}

		// Only write contents if it's a file (i.e. not a directory).
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("open %s", file))
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return errors.WithContext(err, fmt.Sprintf("copy %s", file))
		}
		return nil
	})
}
