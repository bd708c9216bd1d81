package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"

	"github.com/paleotronic/diskbasic/container"
	"github.com/paleotronic/diskbasic/disk"
)

const MAXVOL = 8

var commandList map[string]*shellCommand
var commandVolumes [MAXVOL]*session
var commandTarget int = -1

// shellFs and shellOpts are what mount uses to open images.
var shellFs afero.Fs = afero.NewOsFs()
var shellOpts disk.Options
var shellOut io.Writer = os.Stdout

func mountDsk(s *session) (int, error) {

	var fr []int

	for i, d := range commandVolumes {
		if d == nil {
			fr = append(fr, i)
		} else if s.path == d.path {
			commandVolumes[i] = s
			return i, nil
		}
	}

	if len(fr) == 0 {
		return -1, errors.New("No free slots")
	}

	commandVolumes[fr[0]] = s

	return fr[0], nil

}

func current() *session {
	if commandTarget < 0 || commandTarget >= MAXVOL {
		return nil
	}
	return commandVolumes[commandTarget]
}

func smartSplit(line string) (string, []string) {

	var out []string

	var inqq bool
	var lastEscape bool
	var chunk string

	add := func() {
		if chunk != "" {
			out = append(out, chunk)
			chunk = ""
		}
	}

	for _, ch := range line {
		switch {
		case ch == '"':
			inqq = !inqq
			add()
		case ch == ' ':
			if inqq || lastEscape {
				chunk += string(ch)
			} else {
				add()
			}
			lastEscape = false
		case ch == '\\' && !inqq:
			lastEscape = true
		default:
			chunk += string(ch)
		}
	}

	add()

	if len(out) == 0 {
		return "", out
	}

	return out[0], out[1:]
}

func getPrompt() string {
	s := current()
	if s == nil {
		return "dsk:<no mount>> "
	}
	return fmt.Sprintf("dsk:%d:%s:%s:%s> ", commandTarget, filepath.Base(s.path), s.d.FormatID(), s.d.Pwd())
}

type shellCommand struct {
	Name             string
	Description      string
	MinArgs, MaxArgs int
	Code             func(args []string) int
	NeedsMount       bool
	Context          shellCommandContext
	Text             []string
}

type shellCommandContext int

const (
	sccNone shellCommandContext = 1 << iota
	sccLocal
	sccDiskFile
	sccDiskDir
	sccCommand
	sccFormat
	sccAnyFile = sccDiskFile | sccLocal
)

type shellCompleter struct {
}

func hasPrefix(str []rune, prefix []rune) bool {
	if len(prefix) > len(str) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if str[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (sc *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {

	prefix := ""
	chunk := ""
	for _, ch := range line {
		if ch == ' ' {
			prefix = chunk
			break
		} else {
			chunk += string(ch)
		}
	}

	chunk = ""
	cprefix := ""
	var lastEscape bool
	for i := 0; i < pos; i++ {
		ch := line[i]
		switch {
		case ch == '\\':
			lastEscape = true
		case ch == ' ' && !lastEscape:
			cprefix = chunk
			chunk = ""
			lastEscape = false
		default:
			chunk += string(ch)
		}
	}
	cprefix = chunk

	var context shellCommandContext = sccNone
	cmd, match := commandList[prefix]
	if match {
		context = cmd.Context
	} else {
		context = sccCommand
	}

	var items [][]rune
	switch context {
	case sccCommand:
		for k := range commandList {
			items = append(items, []rune(k))
		}
	case sccFormat:
		for _, id := range disk.Formats() {
			items = append(items, []rune(id.String()))
		}
	case sccDiskFile, sccDiskDir:
		s := current()
		if s == nil {
			return [][]rune(nil), 0
		}
		return diskCompletions(s, cprefix, context == sccDiskDir), len(cprefix)
	case sccLocal:
		files, err := afero.Glob(shellFs, cprefix+"*")
		if err != nil {
			return items, 0
		}
		for _, v := range files {
			items = append(items, []rune(v))
		}
	}

	if len(items) == 0 {
		return [][]rune(nil), 0
	}

	var filt [][]rune
	for _, v := range items {
		if hasPrefix(v, []rune(cprefix)) {
			filt = append(filt, shellEscape(v[len(cprefix):]))
		}
	}
	return filt, len(cprefix)
}

// diskCompletions lists what can follow prefix among the names in the
// current disk directory. Disk names are matched without regard to case
// since most of these systems only store upper case.
func diskCompletions(s *session, prefix string, dirsOnly bool) [][]rune {
	files, err := s.d.Files()
	if err != nil {
		return nil
	}
	up := strings.ToUpper(prefix)
	var names []string
	for _, f := range files {
		if dirsOnly && !f.IsDir() {
			continue
		}
		if f.Attr.Flags.Has(disk.AttrVolume) {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(f.Name), up) {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	var out [][]rune
	for _, n := range names {
		out = append(out, shellEscape([]rune(n)[len([]rune(prefix)):]))
	}
	return out
}

func shellEscape(str []rune) []rune {
	out := make([]rune, 0)
	for _, v := range str {
		if v == ' ' {
			out = append(out, '\\')
		}
		out = append(out, v)
	}
	return out
}

func init() {
	commandList = map[string]*shellCommand{
		"mount": &shellCommand{
			Name:        "mount",
			Description: "Mount a disk image",
			MinArgs:     1,
			MaxArgs:     2,
			Code:        shellMount,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"mount <diskfile> [<format>]",
				"",
				"Mounts the image in a free slot. The format is detected unless",
				"given.",
			},
		},
		"unmount": &shellCommand{
			Name:        "unmount",
			Description: "Unmount disk image",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellUnmount,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"unmount [<slot>]",
			},
		},
		"target": &shellCommand{
			Name:        "target",
			Description: "Select mounted volume as default",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellPrefix,
			NeedsMount:  false,
			Context:     sccNone,
			Text: []string{
				"target <slot>",
			},
		},
		"disks": &shellCommand{
			Name:        "disks",
			Description: "List mounted volumes",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellDisks,
			NeedsMount:  false,
			Context:     sccNone,
		},
		"cat": &shellCommand{
			Name:        "cat",
			Description: "Display file information",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellCat,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"cat [<pattern>]",
			},
		},
		"cd": &shellCommand{
			Name:        "cd",
			Description: "Change directory on the disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellCd,
			NeedsMount:  true,
			Context:     sccDiskDir,
			Text: []string{
				"cd <path>",
				"",
				"Only hierarchical formats have subdirectories.",
			},
		},
		"lcd": &shellCommand{
			Name:        "lcd",
			Description: "Change local directory",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellLcd,
			NeedsMount:  false,
			Context:     sccLocal,
		},
		"lls": &shellCommand{
			Name:        "lls",
			Description: "List local files",
			MinArgs:     0,
			MaxArgs:     -1,
			Code:        shellListFiles,
			NeedsMount:  false,
			Context:     sccLocal,
		},
		"extract": &shellCommand{
			Name:        "extract",
			Description: "Extract file from disk image",
			MinArgs:     1,
			MaxArgs:     2,
			Code:        shellExtract,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"extract <pattern> [<folder>]",
			},
		},
		"put": &shellCommand{
			Name:        "put",
			Description: "Copy local file to disk",
			MinArgs:     1,
			MaxArgs:     2,
			Code:        shellPut,
			NeedsMount:  true,
			Context:     sccLocal,
			Text: []string{
				"put <localfile> [<name>]",
			},
		},
		"delete": &shellCommand{
			Name:        "delete",
			Description: "Remove file from disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellDelete,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"delete <pattern>",
			},
		},
		"rename": &shellCommand{
			Name:        "rename",
			Description: "Rename a file on the disk",
			MinArgs:     2,
			MaxArgs:     2,
			Code:        shellRename,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"rename <name> <new name>",
			},
		},
		"mkdir": &shellCommand{
			Name:        "mkdir",
			Description: "Create a directory on disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMkdir,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"mkdir <name>",
			},
		},
		"lock": &shellCommand{
			Name:        "lock",
			Description: "Lock a file",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellLock,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"lock <pattern>",
			},
		},
		"unlock": &shellCommand{
			Name:        "unlock",
			Description: "Unlock a file",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellUnlock,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"unlock <pattern>",
			},
		},
		"attr": &shellCommand{
			Name:        "attr",
			Description: "Change file attributes",
			MinArgs:     2,
			MaxArgs:     2,
			Code:        shellAttr,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"attr <pattern> <flags>",
				"",
				"Flags are a comma separated list, e.g. basic,readonly. A",
				"leading + or - adds or removes them.",
			},
		},
		"info": &shellCommand{
			Name:        "info",
			Description: "Information about the current disk",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellInfo,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"free": &shellCommand{
			Name:        "free",
			Description: "Show free space",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellFree,
			NeedsMount:  true,
			Context:     sccNone,
		},
		"map": &shellCommand{
			Name:        "map",
			Description: "Show the group map",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellMap,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"map [<width>]",
				"",
				". free  S system  o used  F first  L last  x missing  ! leak",
			},
		},
		"format": &shellCommand{
			Name:        "format",
			Description: "Create a blank disk image",
			MinArgs:     2,
			MaxArgs:     3,
			Code:        shellFormat,
			NeedsMount:  false,
			Context:     sccFormat,
			Text: []string{
				"format <format> <diskfile> [<geometry>]",
				"",
				"The container is D88 when the file name ends in .d88.",
			},
		},
		"formats": &shellCommand{
			Name:        "formats",
			Description: "List supported formats",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellFormats,
			NeedsMount:  false,
			Context:     sccNone,
		},
		"help": &shellCommand{
			Name:        "help",
			Description: "Shows this help",
			MinArgs:     -1,
			MaxArgs:     1,
			Code:        shellHelp,
			NeedsMount:  false,
			Context:     sccCommand,
		},
		"quit": &shellCommand{
			Name:        "quit",
			Description: "Leave this place",
			MinArgs:     -1,
			MaxArgs:     -1,
			Code:        shellQuit,
			NeedsMount:  false,
			Context:     sccNone,
		},
	}
	commandList["ls"] = commandList["cat"]
	commandList["rm"] = commandList["delete"]
	commandList["get"] = commandList["extract"]
}

func shellProcess(line string) int {
	line = strings.TrimSpace(line)

	verb, args := smartSplit(line)

	if verb != "" {
		verb = strings.ToLower(verb)
		command, ok := commandList[verb]
		if ok {
			var cok = true
			if command.MinArgs != -1 {
				if len(args) < command.MinArgs {
					fmt.Fprintf(os.Stderr, "%s expects at least %d arguments\n", verb, command.MinArgs)
					cok = false
				}
			}
			if command.MaxArgs != -1 {
				if len(args) > command.MaxArgs {
					fmt.Fprintf(os.Stderr, "%s expects at most %d arguments\n", verb, command.MaxArgs)
					cok = false
				}
			}
			if command.NeedsMount {
				if current() == nil {
					fmt.Fprintf(os.Stderr, "%s only works on mounted disks\n", verb)
					cok = false
				}
			}
			if cok {
				return command.Code(args)
			}
			return -1
		}
		fmt.Fprintf(os.Stderr, "Unrecognized command: %s\n", verb)
		return -1
	}

	return 0
}

func shellDo(historyFile string) error {

	ac := &shellCompleter{}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 getPrompt(),
		HistoryFile:            historyFile,
		DisableAutoSaveHistory: false,
		AutoComplete:           ac,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}

		r := shellProcess(line)
		if r == 999 {
			return nil
		}

		rl.SetPrompt(getPrompt())
	}

	return nil
}

// shellBatch runs commands one per line and stops at the first failure.
func shellBatch(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	for i, l := range strings.Split(string(data), "\n") {
		switch shellProcess(l) {
		case -1:
			return fmt.Errorf("script failed at line %d: %s", i+1, l)
		case 999:
			return nil
		}
	}
	return nil
}

func shellError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return -1
}

func shellMount(args []string) int {
	opts := shellOpts
	if len(args) > 1 {
		id, err := disk.ParseFormatID(args[1])
		if err != nil {
			return shellError(err)
		}
		opts.Format = id
	}

	s, err := openSession(shellFs, args[0], opts)
	if err != nil {
		return shellError(err)
	}
	s.backups = shellBackups

	slotid, err := mountDsk(s)
	if err != nil {
		return shellError(err)
	}

	commandTarget = slotid
	fmt.Fprintf(os.Stderr, "mount %s disk in slot %d\n", s.d.FormatID(), slotid)

	return 0
}

func shellUnmount(args []string) int {

	if len(args) > 0 {
		if shellPrefix(args) == -1 {
			return -1
		}
	}

	if commandVolumes[commandTarget] != nil {
		commandVolumes[commandTarget] = nil
		os.Stderr.WriteString("Unmounted volume\n")
	}

	return 0
}

func shellPrefix(args []string) int {
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 0 || slot >= MAXVOL {
		fmt.Fprintf(os.Stderr, "Invalid slot %s\n", args[0])
		return -1
	}
	commandTarget = slot
	return 0
}

func shellDisks(args []string) int {
	for i, s := range commandVolumes {
		if s == nil {
			continue
		}
		mark := " "
		if i == commandTarget {
			mark = "*"
		}
		fmt.Fprintf(shellOut, "%s%d  %-10s %s\n", mark, i, s.d.FormatID(), s.path)
	}
	return 0
}

func shellHelp(args []string) int {

	if len(args) == 0 {
		keys := make([]string, 0)
		for k, v := range commandList {
			if k == v.Name {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			info := commandList[k]
			fmt.Fprintf(shellOut, "%-10s %s\n", info.Name, info.Description)
		}
	} else {
		command := strings.ToLower(args[0])
		if details, ok := commandList[command]; ok && details.Text != nil {
			for _, l := range details.Text {
				fmt.Fprintln(shellOut, l)
			}
		} else {
			os.Stderr.WriteString("No help available for " + command + "\n")
		}
	}

	return 0
}

func shellQuit(args []string) int {

	return 999

}

func shellCat(args []string) int {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	if err := current().catalog(shellOut, pattern); err != nil {
		return shellError(err)
	}
	return 0
}

func shellCd(args []string) int {
	s := current()
	if err := s.d.Chdir(args[0]); err != nil {
		return shellError(err)
	}
	fmt.Fprintf(os.Stderr, "Switched to directory %s\n", s.d.Pwd())
	return 0
}

func shellLcd(args []string) int {

	if len(args) > 0 {
		err := os.Chdir(args[0])
		if err != nil {
			os.Stderr.WriteString("Change directory failed: " + err.Error() + "\n")
			return -1
		}
	}

	wd, _ := os.Getwd()
	os.Stderr.WriteString("Working directory is now " + wd + "\n")
	return 0

}

func shellListFiles(args []string) int {

	if len(args) == 0 {
		args = append(args, "*")
	}

	fmt.Fprintf(shellOut, "%8s  %-12s  %s\n", "SIZE", "KIND", "NAME")
	for _, a := range args {
		files, err := afero.Glob(shellFs, a)
		if err != nil {
			os.Stderr.WriteString("Error reading path " + a + ": " + err.Error() + "\n")
			continue
		}
		for _, f := range files {
			fi, err := shellFs.Stat(f)
			if err != nil {
				continue
			}
			kind := "Local file"
			if fi.IsDir() {
				kind = "Directory"
			} else if _, ok := container.GeometryForSize(int(fi.Size())); ok {
				kind = "Disk image"
			}
			fmt.Fprintf(shellOut, "%8d  %-12s  %s\n", fi.Size(), kind, fi.Name())
		}
	}

	return 0
}

func shellExtract(args []string) int {
	dest := "."
	if len(args) > 1 {
		dest = args[1]
	}
	n, err := current().extract(args[0], dest)
	if err != nil {
		return shellError(err)
	}
	fmt.Fprintf(os.Stderr, "%d files were extracted\n", n)
	return 0
}

func shellPut(args []string) int {
	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	if err := current().put(args[0], name, disk.FileInfo{}); err != nil {
		return shellError(err)
	}
	fmt.Fprintln(os.Stderr, "OK")
	return 0
}

func shellDelete(args []string) int {
	n, err := current().remove(args[0])
	if err != nil {
		return shellError(err)
	}
	fmt.Fprintf(os.Stderr, "%d files were deleted\n", n)
	return 0
}

func shellRename(args []string) int {
	if err := current().rename(args[0], args[1]); err != nil {
		return shellError(err)
	}
	return 0
}

func shellMkdir(args []string) int {
	if err := current().mkdir(args[0]); err != nil {
		return shellError(err)
	}
	return 0
}

func shellLock(args []string) int {
	if err := current().setAttr(args[0], "+readonly"); err != nil {
		return shellError(err)
	}
	return 0
}

func shellUnlock(args []string) int {
	if err := current().setAttr(args[0], "-readonly"); err != nil {
		return shellError(err)
	}
	return 0
}

func shellAttr(args []string) int {
	if err := current().setAttr(args[0], args[1]); err != nil {
		return shellError(err)
	}
	return 0
}

func shellInfo(args []string) int {
	current().info(shellOut)
	return 0
}

func shellFree(args []string) int {
	if err := current().free(shellOut); err != nil {
		return shellError(err)
	}
	return 0
}

func shellMap(args []string) int {
	width := 64
	if len(args) > 0 {
		w, err := strconv.Atoi(args[0])
		if err != nil {
			return shellError(err)
		}
		width = w
	}
	if err := current().groupMap(shellOut, width); err != nil {
		return shellError(err)
	}
	return 0
}

func shellFormat(args []string) int {
	id, err := disk.ParseFormatID(args[0])
	if err != nil || id == disk.FormatNone {
		fmt.Fprintf(os.Stderr, "Unknown format %s\n", args[0])
		return -1
	}
	g := id.Geometries()[0]
	if len(args) > 2 {
		if g, err = container.ParseGeometry(args[2]); err != nil {
			return shellError(err)
		}
	}
	s, err := createSession(shellFs, args[1], kindForName(args[1]), g, id, shellOpts)
	if err != nil {
		return shellError(err)
	}
	slotid, err := mountDsk(s)
	if err != nil {
		return shellError(err)
	}
	commandTarget = slotid
	fmt.Fprintf(os.Stderr, "formatted %s as %s, mounted in slot %d\n", args[1], id, slotid)
	return 0
}

func shellFormats(args []string) int {
	for _, id := range disk.Formats() {
		var geoms []string
		for _, g := range id.Geometries() {
			geoms = append(geoms, container.GeometryName(g))
		}
		fmt.Fprintf(shellOut, "%-10s %-40s %s\n", id, id.Description(), strings.Join(geoms, ","))
	}
	return 0
}

func kindForName(name string) container.Kind {
	if container.IsD88Name(name) {
		return container.KindD88
	}
	return container.KindRaw
}
