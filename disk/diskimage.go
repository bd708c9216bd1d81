package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/paleotronic/diskbasic/internal/checkpoint"
	"github.com/paleotronic/diskbasic/loggy"
)

type MountState int

const (
	StateUnparsed MountState = iota
	StateParamsParsed
	StateFatChecked
	StateReady
)

// Checksum is the hex SHA-256 of b, used to tell image files apart.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type Options struct {
	Logger *loggy.Logger
	// Format skips detection when set.
	Format FormatID
	// Strict turns an ambiguous detection into an error.
	Strict bool
	// Now stamps new files. Defaults to time.Now.
	Now func() time.Time
}

// Disk is a mounted filesystem on a sector store.
type Disk struct {
	mu    sync.Mutex
	store SectorStore
	geom  Geometry
	log   *loggy.Logger
	opts  Options

	spec   *formatSpec
	alloc  AllocationStrategy
	codec  DirectoryCodec
	tree   *DirectoryTree
	state  MountState
	ratio  float64
	invert bool
}

// Candidate is one format's detection result.
type Candidate struct {
	Format FormatID
	Ratio  float64
}

func newDisk(store SectorStore, fs *formatSpec, opts Options) *Disk {
	if opts.Logger == nil {
		opts.Logger = loggy.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &Disk{
		store:  store,
		geom:   store.Geometry(),
		log:    opts.Logger,
		opts:   opts,
		spec:   fs,
		invert: fs.inverted,
	}
	d.alloc = fs.newStrategy(d)
	d.codec = fs.newCodec(d)
	d.tree = newDirectoryTree(d)
	return d
}

// probe runs the mount state machine and returns the combined ratio.
func (d *Disk) probe() float64 {
	d.state = StateUnparsed
	r := d.alloc.ParseParamOnDisk()
	if r < 0 {
		return r
	}
	d.state = StateParamsParsed

	rf := d.alloc.CheckFat()
	if rf < 0 {
		return rf
	}
	d.state = StateFatChecked
	if rf < r {
		r = rf
	}

	if err := d.tree.AssignRoot(); err != nil {
		d.log.Debugf("%s: root directory: %v", d.spec.name, err)
		return -1
	}
	if rd := d.tree.root.Ratio(); rd < r {
		r = rd
	}
	d.state = StateReady
	d.ratio = r
	return r
}

// Detect scores every format that fits the store's geometry.
func Detect(store SectorStore, opts Options) []Candidate {
	var out []Candidate
	for _, id := range Formats() {
		fs := registry[id]
		if !fs.fits(store.Geometry()) {
			continue
		}
		d := newDisk(store, fs, opts)
		out = append(out, Candidate{Format: id, Ratio: d.probe()})
	}
	return out
}

// Mount detects the format of store, or uses opts.Format, and returns the
// mounted disk.
func Mount(store SectorStore, opts Options) (*Disk, error) {
	if opts.Format != FormatNone {
		return MountAs(store, opts.Format, opts)
	}
	log := opts.Logger
	if log == nil {
		log = loggy.Discard()
	}

	var best *Candidate
	cands := Detect(store, opts)
	for i := range cands {
		c := &cands[i]
		log.Debugf("detect %s: %.2f", c.Format, c.Ratio)
		if best == nil || c.Ratio > best.Ratio {
			best = c
		}
	}
	if best == nil || best.Ratio < 0 {
		return nil, checkpoint.From(ErrFormatInvalid)
	}
	if best.Ratio < 1 {
		if opts.Strict {
			return nil, checkpoint.Errorf(ErrFormatAmbiguous, "best match %s at %.2f", best.Format, best.Ratio)
		}
		log.Errorf("format %s detected with confidence %.2f", best.Format, best.Ratio)
	}
	return MountAs(store, best.Format, opts)
}

// MountAs mounts store as format id without trying the others.
func MountAs(store SectorStore, id FormatID, opts Options) (*Disk, error) {
	fs, ok := registry[id]
	if !ok {
		return nil, checkpoint.From(ErrUnsupported)
	}
	d := newDisk(store, fs, opts)
	r := d.probe()
	if r < 0 {
		return nil, checkpoint.Errorf(ErrFormatInvalid, "not a %s disk", fs.name)
	}
	if r < 1 && opts.Strict {
		return nil, checkpoint.Errorf(ErrFormatAmbiguous, "%s at %.2f", fs.name, r)
	}
	d.log.Logf("mounted %s (%s), confidence %.2f", fs.name, fs.description, r)
	return d, nil
}

// Format writes an empty filesystem of format id onto store and mounts it.
func Format(store SectorStore, id FormatID, opts Options) (*Disk, error) {
	fs, ok := registry[id]
	if !ok || !fs.fits(store.Geometry()) {
		return nil, checkpoint.From(ErrUnsupported)
	}
	d := newDisk(store, fs, opts)
	if err := d.alloc.Format(); err != nil {
		return nil, err
	}
	d.log.Logf("formatted %s", fs.name)
	if r := d.probe(); r < 0 {
		return nil, checkpoint.Errorf(ErrFormatInvalid, "fresh %s disk did not mount", fs.name)
	}
	return d, nil
}

func (d *Disk) FormatID() FormatID {
	return d.spec.id
}

func (d *Disk) Geometry() Geometry {
	return d.geom
}

func (d *Disk) Confidence() float64 {
	return d.ratio
}

func (d *Disk) State() MountState {
	return d.state
}

func (d *Disk) Strategy() AllocationStrategy {
	return d.alloc
}

func (d *Disk) Tree() *DirectoryTree {
	return d.tree
}

func (d *Disk) ready() error {
	if d == nil || d.state != StateReady {
		return checkpoint.From(ErrNotMounted)
	}
	return nil
}

// failed reloads cached state from disk after an operation broke off.
func (d *Disk) failed(op string, err error) error {
	d.log.Errorf("%s: %v", op, err)
	d.alloc.Recount()
	if aerr := d.tree.Assign(d.tree.current); aerr != nil {
		d.log.Errorf("%s: reload directory: %v", op, aerr)
	}
	return err
}

// FileInfo is the host view of one directory entry.
type FileInfo struct {
	Name     string
	Attr     FileAttr
	Size     int
	ModTime  time.Time
	LoadAddr int
	ExecAddr int
	Caps     Capability
	Start    int
}

func (fi FileInfo) IsDir() bool {
	return fi.Attr.Flags.Has(AttrDirectory)
}

func (d *Disk) info(e DirectoryEntry) FileInfo {
	fi := FileInfo{
		Name:  FullName(e),
		Attr:  e.FileAttr(),
		Size:  d.calcFileSize(e),
		Caps:  e.Capabilities(),
		Start: e.StartGroup(),
	}
	if fi.Caps&CapModTime != 0 {
		fi.ModTime = e.ModTime()
	}
	if fi.Caps&CapAddress != 0 {
		fi.LoadAddr = e.LoadAddress()
		fi.ExecAddr = e.ExecAddress()
	}
	return fi
}

// calcFileSize gives the occupied byte count of e and its extents.
func (d *Disk) calcFileSize(e DirectoryEntry) int {
	if e.Capabilities()&CapExplicitSize != 0 {
		return e.FileSize()
	}
	gl, err := d.alloc.GetAllGroups(e)
	if err != nil {
		return 0
	}
	return gl.Size
}

// Files lists the current directory.
func (d *Disk) Files() ([]FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}

	var out []FileInfo
	for _, e := range d.tree.current.Live() {
		if isDot(e) {
			continue
		}
		out = append(out, d.info(e))
	}
	return out, nil
}

func (d *Disk) find(name string) (DirectoryEntry, error) {
	i := d.tree.FindName(name, 0)
	if i < 0 {
		return nil, checkpoint.Errorf(ErrFileNotFound, "%q", name)
	}
	return d.tree.current.Items[i], nil
}

// Find looks name up in the current directory.
func (d *Disk) Find(name string) (DirectoryEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.find(name)
}

func (d *Disk) Stat(name string) (FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return FileInfo{}, err
	}
	e, err := d.find(name)
	if err != nil {
		return FileInfo{}, err
	}
	return d.info(e), nil
}

func (d *Disk) ReadFile(name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	e, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if e.FileAttr().Flags.Has(AttrDirectory) {
		return nil, checkpoint.From(ErrUnsupported)
	}
	gl, err := d.alloc.GetAllGroups(e)
	if err != nil {
		return nil, err
	}
	return d.alloc.ReadData(e, gl)
}

// WriteFile creates name with data. The attribute, time and addresses are
// taken from info where the format can store them.
func (d *Disk) WriteFile(name string, data []byte, info FileInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	fn, ext, err := d.codec.SplitName(name)
	if err != nil {
		return checkpoint.Errorf(err, "%q", name)
	}
	if d.tree.FindFile(fn, ext, 0) >= 0 {
		return checkpoint.Errorf(ErrDuplicateName, "%q", name)
	}
	e, err := d.tree.GetEmptyItemPtr()
	if err != nil {
		return err
	}

	attr := info.Attr
	if attr.Flags == 0 {
		attr.Flags = AttrBinary
	}
	attr.Flags &^= AttrDirectory | AttrVolume
	e.Clear()
	e.SetFileName(fn, ext)
	e.SetFileAttr(attr)
	if caps := e.Capabilities(); caps&CapModTime != 0 {
		t := info.ModTime
		if t.IsZero() {
			t = d.opts.Now()
		}
		e.SetModTime(t)
	}
	if e.Capabilities()&CapAddress != 0 {
		e.SetLoadAddress(info.LoadAddr)
		e.SetExecAddress(info.ExecAddr)
	}

	gl, err := d.alloc.AllocateUnitGroups(e, len(data), AllocNew)
	if err != nil {
		return d.failed("write "+name, err)
	}
	if err := d.alloc.WriteData(e, gl, data); err != nil {
		d.alloc.DeleteGroups(gl)
		return d.failed("write "+name, err)
	}
	if err := d.alloc.CommitEntry(e, gl, len(data)); err != nil {
		d.alloc.DeleteGroups(gl)
		return d.failed("write "+name, err)
	}
	d.log.Logf("wrote %s: %d bytes in %d groups", name, len(data), gl.Count())
	return nil
}

// Delete removes name. The directory record is marked first so a failure
// part way leaves leaked groups rather than a dangling chain.
func (d *Disk) Delete(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	e, err := d.find(name)
	if err != nil {
		return err
	}
	attr := e.FileAttr().Flags
	if isDot(e) || attr.Has(AttrVolume) {
		return checkpoint.Errorf(ErrNotDeletable, "%q", name)
	}
	if attr.Has(AttrReadOnly) {
		return checkpoint.Errorf(ErrReadOnly, "%q", name)
	}
	if attr.Has(AttrDirectory) {
		child := &DirNode{Entry: e, Parent: d.tree.current}
		if err := d.tree.Assign(child); err != nil {
			return err
		}
		for _, c := range child.Live() {
			if !isDot(c) {
				return checkpoint.Errorf(ErrDirectoryNotEmpty, "%q", name)
			}
		}
	}

	gl, gerr := d.alloc.GetAllGroups(e)
	extra := e.ExtraGroup()
	for x := e; x != nil; x = x.Next() {
		x.Delete()
		if err := d.Publish(x); err != nil {
			return d.failed("delete "+name, err)
		}
	}
	if gerr != nil {
		d.log.Errorf("delete %s: chain: %v, groups leaked", name, gerr)
		d.alloc.Recount()
		return nil
	}
	if err := d.alloc.DeleteGroups(gl); err != nil {
		return d.failed("delete "+name, err)
	}
	if extra != NoGroup {
		d.alloc.DeleteGroupNumber(extra)
	}
	d.log.Logf("deleted %s: %d groups released", name, gl.Count())
	return nil
}

func (d *Disk) Rename(oldName, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	e, err := d.find(oldName)
	if err != nil {
		return err
	}
	if isDot(e) || e.FileAttr().Flags.Has(AttrVolume) {
		return checkpoint.Errorf(ErrNotRenamable, "%q", oldName)
	}
	fn, ext, err := d.codec.SplitName(newName)
	if err != nil {
		return checkpoint.Errorf(err, "%q", newName)
	}
	if i := d.tree.FindFile(fn, ext, 0); i >= 0 && d.tree.current.Items[i] != e {
		return checkpoint.Errorf(ErrDuplicateName, "%q", newName)
	}
	for x := e; x != nil; x = x.Next() {
		x.SetFileName(fn, ext)
		if err := d.Publish(x); err != nil {
			return d.failed("rename "+oldName, err)
		}
	}
	return nil
}

// SetAttr updates the attribute, time and addresses of name from info.
// The directory and volume flags cannot be changed this way.
func (d *Disk) SetAttr(name string, info FileInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	e, err := d.find(name)
	if err != nil {
		return err
	}
	if e = d.tree.Resolve(e); e == nil {
		return checkpoint.Errorf(ErrUnsupported, "%q is the root", name)
	}

	old := e.FileAttr()
	keep := AttrDirectory | AttrVolume
	attr := info.Attr
	attr.Flags = attr.Flags&^keep | old.Flags&keep
	if _, ok := attr.Native(d.spec.id); !ok {
		attr.Origin, attr.Format = old.Origin, old.Format
	}
	for x := e; x != nil; x = x.Next() {
		x.SetFileAttr(attr)
		if !info.ModTime.IsZero() {
			x.SetModTime(info.ModTime)
		}
		if x.Capabilities()&CapAddress != 0 {
			x.SetLoadAddress(info.LoadAddr)
			x.SetExecAddress(info.ExecAddr)
		}
		if err := d.Publish(x); err != nil {
			return d.failed("attr "+name, err)
		}
	}
	return nil
}

func (d *Disk) Mkdir(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	maker, ok := d.alloc.(dirMaker)
	if !ok || !d.codec.Tree() {
		return checkpoint.From(ErrUnsupported)
	}
	fn, ext, err := d.codec.SplitName(name)
	if err != nil {
		return checkpoint.Errorf(err, "%q", name)
	}
	if d.tree.FindFile(fn, ext, 0) >= 0 {
		return checkpoint.Errorf(ErrDuplicateName, "%q", name)
	}
	e, err := d.tree.GetEmptyItemPtr()
	if err != nil {
		return err
	}
	e.Clear()
	e.SetFileName(fn, ext)
	e.SetFileAttr(FileAttr{Flags: AttrDirectory})
	if e.Capabilities()&CapModTime != 0 {
		e.SetModTime(d.opts.Now())
	}
	if err := maker.MakeDirectory(d.tree.current, e); err != nil {
		return d.failed("mkdir "+name, err)
	}
	return nil
}

// Chdir moves the current directory. "/" is the root and components are
// separated by slashes.
func (d *Disk) Chdir(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if strings.HasPrefix(path, "/") {
		d.tree.current = d.tree.root
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if d.tree.current.Parent != nil {
				d.tree.current = d.tree.current.Parent
			}
			continue
		}
		e, err := d.find(part)
		if err != nil {
			return err
		}
		if err := d.tree.Change(e); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disk) Pwd() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree.Path()
}

func (d *Disk) FreeSpace() (FreeSpace, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return FreeSpace{}, err
	}
	return d.alloc.CalcDiskFreeSize(), nil
}

// Availability builds the group map. Groups the table marks used but no
// file reaches are reported as leaks.
func (d *Disk) Availability() (Availability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}

	count := d.alloc.GroupCount()
	av := make(Availability, count)
	for g := range av {
		av[g] = d.alloc.GroupStatus(g)
		if av[g] != GroupMissing && !d.groupPresent(g) {
			av[g] = GroupMissing
		}
	}

	reached := make([]bool, count)
	mark := func(g int, s GroupStatus) {
		if g >= 0 && g < count {
			reached[g] = true
			if av[g] != GroupMissing && av[g] != GroupSystem {
				av[g] = s
			}
		}
	}
	err := d.tree.walk(d.tree.root, func(n *DirNode) error {
		for _, it := range n.Groups.Items {
			mark(it.Group, GroupUsed)
		}
		if n.Entry != nil {
			mark(n.Entry.ExtraGroup(), GroupUsed)
		}
		for _, e := range n.Live() {
			if isDot(e) || e.FileAttr().Flags.Has(AttrDirectory) {
				continue
			}
			gl, err := d.alloc.GetAllGroups(e)
			if err != nil {
				d.log.Errorf("map: %s: %v", FullName(e), err)
				continue
			}
			for i, it := range gl.Items {
				s := GroupUsed
				switch {
				case i == 0:
					s = GroupUsedFirst
				case i == len(gl.Items)-1:
					s = GroupUsedLast
				}
				mark(it.Group, s)
			}
			mark(e.ExtraGroup(), GroupUsed)
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrDirectoryCorrupt) {
		return nil, err
	}

	for g := range av {
		if !reached[g] && av[g] == GroupUsed {
			av[g] = GroupLeak
		}
	}
	return av, nil
}

func (d *Disk) groupPositions(g int) []int {
	if gp, ok := d.alloc.(groupPositioner); ok {
		return gp.GroupPositions(g)
	}
	start := d.alloc.GetStartSectorFromGroup(g)
	n := d.alloc.BytesPerGroup() / d.geom.SectorSize
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func (d *Disk) groupPresent(g int) bool {
	for _, p := range d.groupPositions(g) {
		if d.store.GetManagedSector(p) == nil {
			return false
		}
	}
	return true
}
