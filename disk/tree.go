package disk

import (
	"strings"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
)

// DirNode is one loaded directory. Entry is nil for the root.
type DirNode struct {
	Entry  DirectoryEntry
	Parent *DirNode
	Groups *GroupList
	Items  []DirectoryEntry

	end    int
	used   int
	failed int
}

// Ratio is the share of used slots that validated.
func (n *DirNode) Ratio() float64 {
	if n.used == 0 {
		return 1
	}
	return 1 - float64(n.failed)/float64(n.used)
}

// Live lists the entries a directory listing shows.
func (n *DirNode) Live() []DirectoryEntry {
	var out []DirectoryEntry
	for _, e := range n.Items[:n.end] {
		if live(e) {
			out = append(out, e)
		}
	}
	return out
}

func live(e DirectoryEntry) bool {
	if !e.CheckUsed() || e.base().tail {
		return false
	}
	ok, _ := e.Check()
	return ok
}

func (n *DirNode) Name() string {
	if n.Entry == nil {
		return ""
	}
	return FullName(n.Entry)
}

// DirectoryTree tracks the root and the current directory of a mounted disk.
type DirectoryTree struct {
	d       *Disk
	root    *DirNode
	current *DirNode
}

func newDirectoryTree(d *Disk) *DirectoryTree {
	return &DirectoryTree{d: d}
}

func (t *DirectoryTree) Root() *DirNode {
	return t.root
}

func (t *DirectoryTree) Current() *DirNode {
	return t.current
}

// AssignRoot loads the root directory and makes it current.
func (t *DirectoryTree) AssignRoot() error {
	n := &DirNode{}
	if err := t.Assign(n); err != nil {
		return err
	}
	t.root, t.current = n, n
	return nil
}

// Assign (re)reads the slots of n from disk.
func (t *DirectoryTree) Assign(n *DirNode) error {
	var gl *GroupList
	var err error
	if n.Entry != nil {
		gl, err = t.d.alloc.GetAllGroups(n.Entry)
	} else {
		gl, err = t.d.alloc.RootGroups()
	}
	if err != nil {
		return checkpoint.Wrap(err, ErrDirectoryCorrupt)
	}
	n.Groups = gl

	size := t.d.codec.EntrySize()
	ssize := t.d.geom.SectorSize
	first := 0
	if fs, ok := t.d.codec.(slotOffsetter); ok {
		first = fs.FirstSlot()
	}
	n.Items = n.Items[:0]
	for _, pos := range n.Groups.Positions() {
		data, err := t.d.readSector(pos)
		if err != nil {
			return checkpoint.Wrap(err, ErrDirectoryCorrupt)
		}
		for off := first; off+size <= ssize; off += size {
			rec := make([]byte, size)
			copy(rec, data[off:off+size])
			e := t.d.codec.NewEntry(rec)
			b := e.base()
			b.loc = Location{Pos: pos, Offset: off, Index: len(n.Items)}
			b.d = t.d
			n.Items = append(n.Items, e)
		}
	}
	if lim, ok := t.d.alloc.(dirLimiter); ok {
		if max := lim.DirectorySlots(n); max >= 0 && max < len(n.Items) {
			n.Items = n.Items[:max]
		}
	}

	n.end, n.used, n.failed = len(n.Items), 0, 0
	for i, e := range n.Items {
		ok, last := e.Check()
		if last {
			n.end = i
			break
		}
		if !e.CheckUsed() {
			continue
		}
		if l, isLoader := e.(entryLoader); isLoader {
			l.load()
			ok, _ = e.Check()
		}
		n.used++
		if !ok {
			n.failed++
		}
	}
	if linker, ok := t.d.codec.(extentLinker); ok {
		linker.LinkExtents(n.Items[:n.end])
	}

	if n.failed > 0 && n.failed*2 > n.used {
		t.d.log.Errorf("directory %q: %d of %d entries invalid", n.Name(), n.failed, n.used)
		return checkpoint.From(ErrDirectoryCorrupt)
	}
	return nil
}

// Change makes dst the current directory. "." stays, ".." moves up.
func (t *DirectoryTree) Change(dst DirectoryEntry) error {
	switch {
	case dst == nil:
		t.current = t.root
		return nil
	case isDot(dst) && dst.FileName() == ".":
		return nil
	case isDot(dst):
		if t.current.Parent != nil {
			t.current = t.current.Parent
		}
		return nil
	}
	if !dst.FileAttr().Flags.Has(AttrDirectory) {
		return ErrNotDirectory
	}
	n := &DirNode{Entry: dst, Parent: t.current}
	if err := t.Assign(n); err != nil {
		return err
	}
	t.current = n
	return nil
}

// Resolve maps "." and ".." onto the entries that own those directories.
// It returns nil for the root.
func (t *DirectoryTree) Resolve(e DirectoryEntry) DirectoryEntry {
	if !isDot(e) {
		return e
	}
	if e.FileName() == "." {
		return t.current.Entry
	}
	if t.current.Parent == nil {
		return nil
	}
	return t.current.Parent.Entry
}

// FindFile returns the index of the first live entry at or after from
// matching name and ext, or -1.
func (t *DirectoryTree) FindFile(name, ext string, from int) int {
	n := t.current
	for i := from; i >= 0 && i < n.end; i++ {
		e := n.Items[i]
		if live(e) && sameName(e, name, ext) {
			return i
		}
	}
	return -1
}

// FindName is FindFile on a host name.
func (t *DirectoryTree) FindName(full string, from int) int {
	if full == "." || full == ".." {
		return t.FindFile(full, "", from)
	}
	name, ext, err := t.d.codec.SplitName(full)
	if err != nil {
		return -1
	}
	return t.FindFile(name, ext, from)
}

// FindFileByAttr returns the next live entry carrying all of mask.
func (t *DirectoryTree) FindFileByAttr(mask AttrFlags, from int) int {
	n := t.current
	for i := from; i >= 0 && i < n.end; i++ {
		e := n.Items[i]
		if live(e) && e.FileAttr().Flags.Has(mask) {
			return i
		}
	}
	return -1
}

// GetEmptyItemPtr returns a free slot in the current directory, growing
// it when the format allows.
func (t *DirectoryTree) GetEmptyItemPtr() (DirectoryEntry, error) {
	return t.emptyIn(t.current, true)
}

func (t *DirectoryTree) emptyIn(n *DirNode, grow bool) (DirectoryEntry, error) {
	for _, e := range n.Items[:n.end] {
		if !e.CheckUsed() && !e.base().tail {
			return e, nil
		}
	}
	if n.end < len(n.Items) {
		e := n.Items[n.end]
		n.end++
		return e, nil
	}

	g, ok := t.d.alloc.(dirGrower)
	if !grow || !ok || !t.d.codec.Tree() {
		return nil, ErrDirectoryFull
	}
	if err := g.GrowDirectory(n); err != nil {
		return nil, checkpoint.Wrap(err, ErrDirectoryFull)
	}
	if err := t.Assign(n); err != nil {
		return nil, err
	}
	return t.emptyIn(n, false)
}

// CalcSize sums the sizes of the live entries of n.
func (t *DirectoryTree) CalcSize(n *DirNode) int {
	total := 0
	for _, e := range n.Live() {
		if isDot(e) {
			continue
		}
		total += t.d.calcFileSize(e)
	}
	return total
}

// Path is the current directory as a slash separated path.
func (t *DirectoryTree) Path() string {
	var parts []string
	for n := t.current; n != nil && n.Entry != nil; n = n.Parent {
		parts = append([]string{n.Name()}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

// maxDepth bounds directory recursion on damaged images.
const maxDepth = 32

// walk visits every directory below n, depth first.
func (t *DirectoryTree) walk(n *DirNode, fn func(n *DirNode) error) error {
	return t.walkDepth(n, fn, 0)
}

func (t *DirectoryTree) walkDepth(n *DirNode, fn func(n *DirNode) error, depth int) error {
	if depth > maxDepth {
		return checkpoint.From(ErrDirectoryCorrupt)
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, e := range n.Live() {
		if isDot(e) || !e.FileAttr().Flags.Has(AttrDirectory) {
			continue
		}
		child := &DirNode{Entry: e, Parent: n}
		if err := t.Assign(child); err != nil {
			return err
		}
		if err := t.walkDepth(child, fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}
