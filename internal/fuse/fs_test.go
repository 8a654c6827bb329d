package fuse

import (
	"context"
	"errors"
	"syscall"
	"testing"

	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardcontact/cardfs/internal/source"
	"github.com/cardcontact/cardfs/pkg/models"
	"github.com/cardcontact/cardfs/pkg/mscfs"
)

func newTestFS(t *testing.T) (*CardFS, *source.Static) {
	lister := source.NewStatic([]models.Entry{
		{ID: models.ObjectID{0x50, 0x15, 0x00, 0x00}},
		{ID: models.ObjectID{0x50, 0x15, 0x01, 0x02}, Size: 300, ACL: models.ACL{Write: 2}},
		{ID: models.ObjectID{0x3F, 0x00, 0x00, 0x01}, Size: 12},
	})
	f := New(mscfs.New(lister), Config{}, nil)
	require.NoError(t, f.Refresh())
	return f, lister
}

func readdirNames(t *testing.T, n *CardNode) []string {
	stream, errno := n.Readdir(context.Background())
	require.Equal(t, syscall.Errno(0), errno)
	var names []string
	for stream.HasNext() {
		e, errno := stream.Next()
		require.Equal(t, syscall.Errno(0), errno)
		names = append(names, e.Name)
	}
	return names
}

func TestReaddir(t *testing.T) {
	f, _ := newTestFS(t)

	assert.Equal(t, []string{"5015", "0001"}, readdirNames(t, f.Root()))
	assert.Equal(t, []string{"0102"}, readdirNames(t, &CardNode{fsys: f, path: "/5015"}))

	_, errno := (&CardNode{fsys: f, path: "/0001"}).Readdir(context.Background())
	assert.Equal(t, syscall.ENOTDIR, errno)
}

func TestGetattr(t *testing.T) {
	f, _ := newTestFS(t)
	ctx := context.Background()

	var out gofuse.AttrOut
	require.Equal(t, syscall.Errno(0), f.Root().Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(syscall.S_IFDIR), out.Mode&syscall.S_IFMT)

	out = gofuse.AttrOut{}
	require.Equal(t, syscall.Errno(0), (&CardNode{fsys: f, path: "/5015/0102"}).Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(syscall.S_IFREG), out.Mode&syscall.S_IFMT)
	assert.Equal(t, uint64(300), out.Size)

	assert.Equal(t, syscall.ENOENT, (&CardNode{fsys: f, path: "/9999"}).Getattr(ctx, nil, &out))
}

func TestOpen_NotSupported(t *testing.T) {
	f, _ := newTestFS(t)
	_, _, errno := (&CardNode{fsys: f, path: "/0001"}).Open(context.Background(), 0)
	assert.Equal(t, syscall.ENOTSUP, errno)
}

func TestXattr(t *testing.T) {
	f, _ := newTestFS(t)
	n := &CardNode{fsys: f, path: "/5015/0102"}
	ctx := context.Background()

	buf := make([]byte, 64)
	sz, errno := n.Getxattr(ctx, xattrObjectID, buf)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, "50150102", string(buf[:sz]))

	sz, errno = n.Getxattr(ctx, xattrACL, buf)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, "r=0000 w=0002 d=0000", string(buf[:sz]))

	sz, errno = n.Getxattr(ctx, xattrObjectID, make([]byte, 2))
	assert.Equal(t, syscall.ERANGE, errno)
	assert.Equal(t, uint32(8), sz)

	_, errno = n.Getxattr(ctx, "user.other", buf)
	assert.Equal(t, syscall.ENODATA, errno)

	sz, errno = n.Listxattr(ctx, buf)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Contains(t, string(buf[:sz]), xattrACL)
}

func TestRefresh_PicksUpChanges(t *testing.T) {
	f, _ := newTestFS(t)
	assert.NotNil(t, f.node("/0001"))

	lister := source.NewStatic([]models.Entry{{ID: models.ObjectID{0x3F, 0x00, 0x00, 0x02}}})
	f.session = mscfs.New(lister)
	require.NoError(t, f.Refresh())
	assert.Nil(t, f.node("/0001"))
	assert.NotNil(t, f.node("/0002"))
}

func TestRefresh_Error(t *testing.T) {
	f, lister := newTestFS(t)
	lister.FailAt = 0
	lister.Err = errors.New("card removed")

	err := f.Refresh()
	assert.ErrorIs(t, err, lister.Err)
	// The previous tree stays in place.
	assert.NotNil(t, f.node("/5015"))
}

func TestNode_BeforeRefresh(t *testing.T) {
	f := New(mscfs.New(source.NewStatic(nil)), Config{}, nil)
	assert.Nil(t, f.node("/"))

	var out gofuse.AttrOut
	assert.Equal(t, syscall.ENOENT, f.Root().Getattr(context.Background(), nil, &out))
}

func TestLookup_UsesIndexedPath(t *testing.T) {
	f, _ := newTestFS(t)
	for _, p := range []string{"/", "/5015", "/5015/0102", "/0001"} {
		n := f.node(p)
		require.NotNil(t, n, p)
		assert.Equal(t, p, n.Path)
	}
	assert.Nil(t, f.node("/5015/0001"))
}
