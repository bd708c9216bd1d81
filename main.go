package main

/*
dbasic reads and writes the floppy filesystems of the late 1970s and 1980s
Japanese and European home computers: N88-BASIC, F-BASIC, Hu-BASIC, MZ,
FLEX, OS-9, CP/M and their relatives, held in D88 or plain sector dumps.

Every command works on the image named by --image. The format is detected
unless --format names it.
*/

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/paleotronic/diskbasic/container"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/loggy"
)

func binpath() string {

	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE") + "/DiskBasic"
	}
	return os.Getenv("HOME") + "/DiskBasic"

}

var (
	imagePath    string
	formatName   string
	workDir      string
	verbose      bool
	strict       bool
	logDir       string
	shellBackups string

	log *loggy.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dbasic",
		Short: "Read and write DISK BASIC floppy images",
		Long: `dbasic lists, extracts, stores and deletes files on the floppy
filesystems of classic BASIC machines. Images are D88 or raw sector dumps.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&imagePath, "image", "i", "", "disk image to work on")
	pf.StringVarP(&formatName, "format", "f", "auto", "filesystem format (see 'formats')")
	pf.StringVarP(&workDir, "dir", "d", "", "directory on the disk to work in")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	pf.BoolVar(&strict, "strict", false, "refuse ambiguous format detection")
	pf.StringVar(&logDir, "log-dir", binpath()+"/logs", "folder for log files (empty disables)")
	pf.StringVar(&shellBackups, "backups", binpath()+"/backup", "folder for image backups (empty disables)")

	root.AddCommand(
		newLsCmd(),
		newGetCmd(),
		newPutCmd(),
		newRmCmd(),
		newMvCmd(),
		newMkdirCmd(),
		newAttrCmd(),
		newFormatCmd(),
		newInfoCmd(),
		newFreeCmd(),
		newMapCmd(),
		newFormatsCmd(),
		newShellCmd(),
	)
	return root
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if logDir != "" {
		log, err = loggy.NewFile(logDir, "dbasic")
		if err != nil {
			return err
		}
	} else {
		log = loggy.New(os.Stderr, "dbasic")
		log.Level = loggy.LevelError
	}
	if verbose {
		log.Echo = logDir != ""
		log.Level = loggy.LevelDebug
	}

	id, err := disk.ParseFormatID(formatName)
	if err != nil {
		return fmt.Errorf("unknown format %q", formatName)
	}
	shellFs = afero.NewOsFs()
	shellOpts = disk.Options{Logger: log, Format: id, Strict: strict}
	return nil
}

// withImage opens --image, moves to --dir and runs fn.
func withImage(fn func(s *session, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if imagePath == "" {
			return fmt.Errorf("--image is required")
		}
		s, err := openSession(shellFs, imagePath, shellOpts)
		if err != nil {
			return err
		}
		s.backups = shellBackups
		if workDir != "" {
			if err := s.d.Chdir(workDir); err != nil {
				return err
			}
		}
		return fn(s, args)
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls [pattern]",
		Aliases: []string{"cat", "dir"},
		Short:   "List files",
		Args:    cobra.MaximumNArgs(1),
		RunE: withImage(func(s *session, args []string) error {
			pattern := ""
			if len(args) > 0 {
				pattern = args[0]
			}
			return s.catalog(os.Stdout, pattern)
		}),
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <pattern> [folder]",
		Aliases: []string{"extract"},
		Short:   "Copy files from the disk to the host",
		Args:    cobra.RangeArgs(1, 2),
		RunE: withImage(func(s *session, args []string) error {
			dest := "."
			if len(args) > 1 {
				dest = args[1]
			}
			n, err := s.extract(args[0], dest)
			fmt.Fprintf(os.Stderr, "%d files were extracted\n", n)
			return err
		}),
	}
}

func newPutCmd() *cobra.Command {
	var kind, load, exec string
	cmd := &cobra.Command{
		Use:   "put <localfile> [name]",
		Short: "Copy a host file onto the disk",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withImage(func(s *session, args []string) error {
			var info disk.FileInfo
			if kind != "" {
				flags, err := disk.ParseAttrFlags(kind)
				if err != nil {
					return fmt.Errorf("unknown type %q", kind)
				}
				info.Attr.Flags = flags
			}
			var err error
			if info.LoadAddr, err = parseAddr(load); err != nil {
				return err
			}
			if info.ExecAddr, err = parseAddr(exec); err != nil {
				return err
			}
			name := ""
			if len(args) > 1 {
				name = args[1]
			}
			return s.put(args[0], name, info)
		}),
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "attributes, e.g. basic or machine,readonly")
	cmd.Flags().StringVar(&load, "load", "", "load address (hex with $ or 0x)")
	cmd.Flags().StringVar(&exec, "exec", "", "exec address (hex with $ or 0x)")
	return cmd
}

// parseAddr reads a decimal or $/0x prefixed hex address.
func parseAddr(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return int(v), nil
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <pattern>",
		Aliases: []string{"delete"},
		Short:   "Delete files",
		Args:    cobra.ExactArgs(1),
		RunE: withImage(func(s *session, args []string) error {
			n, err := s.remove(args[0])
			fmt.Fprintf(os.Stderr, "%d files were deleted\n", n)
			return err
		}),
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <name> <new name>",
		Aliases: []string{"rename"},
		Short:   "Rename a file",
		Args:    cobra.ExactArgs(2),
		RunE: withImage(func(s *session, args []string) error {
			return s.rename(args[0], args[1])
		}),
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a subdirectory",
		Args:  cobra.ExactArgs(1),
		RunE: withImage(func(s *session, args []string) error {
			return s.mkdir(args[0])
		}),
	}
}

func newAttrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attr <pattern> <flags>",
		Short: "Change file attributes (+flag adds, -flag removes)",
		Args:  cobra.ExactArgs(2),
		RunE: withImage(func(s *session, args []string) error {
			return s.setAttr(args[0], args[1])
		}),
	}
}

func newFormatCmd() *cobra.Command {
	var geometry, kind string
	cmd := &cobra.Command{
		Use:   "format <diskfile>",
		Short: "Create a blank formatted image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := shellOpts.Format
			if id == disk.FormatNone {
				return fmt.Errorf("--format is required")
			}
			g := id.Geometries()[0]
			if geometry != "" {
				var err error
				if g, err = container.ParseGeometry(geometry); err != nil {
					return err
				}
			}
			k := kindForName(args[0])
			switch kind {
			case "d88":
				k = container.KindD88
			case "raw":
				k = container.KindRaw
			case "":
			default:
				return fmt.Errorf("unknown container %q", kind)
			}
			s, err := createSession(shellFs, args[0], k, g, id, shellOpts)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "formatted %s as %s on %s\n", filepath.Base(s.path), id, container.GeometryName(g))
			return nil
		},
	}
	cmd.Flags().StringVarP(&geometry, "geometry", "g", "", "disk geometry (2d, 1d, smc, 1dd9, 2dd9, 2hd18, 2hd, 8ss)")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "container kind (d88 or raw)")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show image and format details",
		Args:  cobra.NoArgs,
		RunE: withImage(func(s *session, args []string) error {
			s.info(os.Stdout)
			return nil
		}),
	}
}

func newFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free",
		Short: "Show free space",
		Args:  cobra.NoArgs,
		RunE: withImage(func(s *session, args []string) error {
			return s.free(os.Stdout)
		}),
	}
}

func newMapCmd() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Draw the group map",
		Args:  cobra.NoArgs,
		RunE: withImage(func(s *session, args []string) error {
			return s.groupMap(os.Stdout, width)
		}),
	}
	cmd.Flags().IntVarP(&width, "width", "w", 64, "groups per line")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			shellFormats(nil)
		},
	}
}

func newShellCmd() *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start interactive mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagePath != "" {
				if shellMount([]string{imagePath}) != 0 {
					return fmt.Errorf("cannot mount %s", imagePath)
				}
				if workDir != "" {
					if shellCd([]string{workDir}) != 0 {
						return fmt.Errorf("cannot change to %s", workDir)
					}
				}
			}
			switch batch {
			case "":
				os.MkdirAll(binpath(), 0755)
				return shellDo(binpath() + "/.shell_history")
			case "-":
				return shellBatch(os.Stdin)
			}
			f, err := shellFs.Open(batch)
			if err != nil {
				return err
			}
			defer f.Close()
			return shellBatch(f)
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "run commands from file ('-' for stdin) and exit")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
