package blob_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
)

func TestNewName(t *testing.T) {
	a := blob.NewName("Photo.JPG")
	b := blob.NewName("Photo.JPG")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.Equal(t, strings.ToLower(a), a)
	// ULID 26 位
	assert.Len(t, strings.TrimSuffix(a, ".jpg"), 26)
	// 单调递增
	assert.Less(t, a, b)
}

func TestNewNameDropsUnsafeExt(t *testing.T) {
	for _, in := range []string{"noext", "trailing.", "weird.p h p", "x.abcdefghijklmnopqrstuvwxyz"} {
		name := blob.NewName(in)
		assert.NotContains(t, name, ".", "input %q", in)
	}
}

func TestNameFromLocator(t *testing.T) {
	name, err := blob.NameFromLocator("/uploads/01abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "01abc.pdf", name)

	name, err = blob.NameFromLocator("raw.txt")
	require.NoError(t, err)
	assert.Equal(t, "raw.txt", name)

	for _, bad := range []string{"", "/x/", "/x/..", "."} {
		_, err := blob.NameFromLocator(bad)
		assert.ErrorIs(t, err, blob.ErrNotFound, bad)
	}
}

func TestNamingCandidates(t *testing.T) {
	n := blob.Naming{PublicPrefix: "/uploads", APIPrefix: "/api/file"}

	assert.Equal(t, []string{"/api/file/x.bin", "/uploads/x.bin"}, n.Candidates("x.bin"))
}
