// Package fuse exposes a card listing as a read-only FUSE filesystem.
package fuse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	"github.com/cardcontact/cardfs/pkg/models"
	"github.com/cardcontact/cardfs/pkg/mscfs"
	"github.com/cardcontact/cardfs/pkg/tree"
)

// Config holds FUSE view configuration.
type Config struct {
	RefreshInterval time.Duration
}

// CardFS serves a session's listing. The session is guarded by mu because
// go-fuse calls in from many goroutines.
type CardFS struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	session *mscfs.Session
	root    *tree.Node
	index   map[string]*tree.Node
	mounted time.Time

	refreshStop chan struct{}
	stopOnce    sync.Once
}

// CardNode is a directory or file in the mounted view.
type CardNode struct {
	fs.Inode

	fsys *CardFS
	path string
}

// New creates a view over session. Call Refresh before mounting.
func New(session *mscfs.Session, cfg Config, log *zap.Logger) *CardFS {
	if log == nil {
		log = zap.NewNop()
	}
	return &CardFS{
		cfg:         cfg,
		log:         log,
		session:     session,
		mounted:     time.Now(),
		refreshStop: make(chan struct{}),
	}
}

// Refresh invalidates the session cache and rebuilds the tree from a fresh
// enumeration.
func (f *CardFS) Refresh() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.session.Invalidate()
	if err := f.session.EnsurePopulated(); err != nil {
		return fmt.Errorf("enumerate card: %w", err)
	}
	rootEntry, _, err := f.session.LoadFileInfo(nil)
	if err != nil {
		return fmt.Errorf("load root: %w", err)
	}
	old := tree.CountNodes(f.root)
	f.root = tree.Build(rootEntry, f.session.Entries())
	f.index = tree.Flatten(f.root)
	if n := tree.CountNodes(f.root); n != old {
		f.log.Info("listing refreshed", zap.Int("before", old), zap.Int("after", n))
	} else {
		f.log.Debug("listing refreshed (unchanged)", zap.Int("nodes", n))
	}
	return nil
}

// StartRefreshLoop refreshes periodically until ctx ends or StopRefreshLoop.
func (f *CardFS) StartRefreshLoop(ctx context.Context) {
	if f.cfg.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(f.cfg.RefreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := f.Refresh(); err != nil {
					f.log.Error("listing refresh failed", zap.Error(err))
				}
			case <-f.refreshStop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	f.log.Info("listing refresh enabled", zap.Duration("interval", f.cfg.RefreshInterval))
}

// StopRefreshLoop stops the refresh loop.
func (f *CardFS) StopRefreshLoop() {
	f.stopOnce.Do(func() { close(f.refreshStop) })
}

// Root returns the root inode embedder.
func (f *CardFS) Root() *CardNode {
	return &CardNode{fsys: f, path: "/"}
}

// Mount mounts the filesystem at the given path.
func (f *CardFS) Mount(mountPoint string) (*gofuse.Server, error) {
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			AllowOther: false,
			FsName:     "cardfs",
			Name:       "cardfs",
		},
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	}

	server, err := fs.Mount(mountPoint, f.Root(), opts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return server, nil
}

// node returns the current tree node for path.
func (f *CardFS) node(path string) *tree.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index[path]
}

func (f *CardFS) fillAttr(n *tree.Node, out *gofuse.Attr) {
	if n.IsDir() {
		out.Mode = 0555 | syscall.S_IFDIR
	} else {
		out.Mode = 0444 | syscall.S_IFREG
	}
	out.Size = uint64(n.Entry.Size)
	t := uint64(f.mounted.Unix())
	out.Mtime, out.Atime, out.Ctime = t, t, t
	out.Uid = uint32(os.Getuid())
	out.Gid = uint32(os.Getgid())
}

var (
	_ fs.InodeEmbedder   = (*CardNode)(nil)
	_ fs.NodeGetattrer   = (*CardNode)(nil)
	_ fs.NodeLookuper    = (*CardNode)(nil)
	_ fs.NodeReaddirer   = (*CardNode)(nil)
	_ fs.NodeOpener      = (*CardNode)(nil)
	_ fs.NodeGetxattrer  = (*CardNode)(nil)
	_ fs.NodeListxattrer = (*CardNode)(nil)
)

// Getattr returns file attributes from the cached entry.
func (n *CardNode) Getattr(ctx context.Context, fh fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	node := n.fsys.node(n.path)
	if node == nil {
		return syscall.ENOENT
	}
	n.fsys.fillAttr(node, &out.Attr)
	return 0
}

// Lookup finds a child by name.
func (n *CardNode) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	node := n.fsys.node(n.path)
	if node == nil || !node.IsDir() {
		return nil, syscall.ENOENT
	}
	child := node.Child(name)
	if child == nil {
		return nil, syscall.ENOENT
	}

	n.fsys.fillAttr(child, &out.Attr)
	embedder := &CardNode{fsys: n.fsys, path: child.Path}
	return n.NewInode(ctx, embedder, fs.StableAttr{Mode: out.Mode & syscall.S_IFMT}), 0
}

// Readdir lists directory contents.
func (n *CardNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	node := n.fsys.node(n.path)
	if node == nil || !node.IsDir() {
		return nil, syscall.ENOTDIR
	}

	entries := make([]gofuse.DirEntry, 0, len(node.Children))
	for _, child := range node.Children {
		mode := uint32(syscall.S_IFREG)
		if child.IsDir() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, gofuse.DirEntry{Name: child.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

// Open rejects all opens: object content is read through the card driver,
// not this view.
func (n *CardNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, syscall.ENOTSUP
}

const (
	xattrObjectID = "user.cardfs.object_id"
	xattrACL      = "user.cardfs.acl"
)

// Getxattr exposes the object identifier and access codes.
func (n *CardNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	node := n.fsys.node(n.path)
	if node == nil {
		return 0, syscall.ENOENT
	}
	var val string
	switch attr {
	case xattrObjectID:
		val = node.Entry.ID.String()
	case xattrACL:
		val = formatACL(node.Entry.ACL)
	default:
		return 0, syscall.ENODATA
	}
	if len(dest) < len(val) {
		return uint32(len(val)), syscall.ERANGE
	}
	return uint32(copy(dest, val)), 0
}

// Listxattr lists the supported attributes.
func (n *CardNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	list := xattrObjectID + "\x00" + xattrACL + "\x00"
	if len(dest) < len(list) {
		return uint32(len(list)), syscall.ERANGE
	}
	return uint32(copy(dest, list)), 0
}

func formatACL(a models.ACL) string {
	return fmt.Sprintf("r=%04X w=%04X d=%04X", a.Read, a.Write, a.Delete)
}
