package perms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetModeAndUnset(t *testing.T) {
	p := Create()
	p.SetMode(User, Read|Write, Exact)
	require.True(t, p.base[User].isSet)
	p.UnsetMode(User)
	require.False(t, p.base[User].isSet)
	require.False(t, p.dir[User].isSet)
}

func TestDuplicateIsDeepCopy(t *testing.T) {
	p := Create()
	p.SetMode(User, Read, Exact)
	dup := p.Duplicate()
	dup.SetMode(User, Write, Add)

	assert.Equal(t, Read, p.base[User].mode)
	assert.Equal(t, Write, dup.base[User].mode)
}

func TestMergeExactThenAdd(t *testing.T) {
	dest := Create()
	dest.SetMode(User, Read, Exact)

	src := Create()
	src.SetMode(User, Write, Add)

	Merge(dest, src)
	assert.Equal(t, Read|Write, dest.base[User].mode)
	assert.Equal(t, Exact, dest.base[User].typ) // dest stays EXACT, bits OR'd in
}

func TestMergeExactThenRemove(t *testing.T) {
	dest := Create()
	dest.SetMode(User, Read|Write|Exec, Exact)

	src := Create()
	src.SetMode(User, Write, Remove)

	Merge(dest, src)
	assert.Equal(t, Read|Exec, dest.base[User].mode)
}

func TestMergeNonExactDestReplaced(t *testing.T) {
	dest := Create()
	dest.SetMode(User, Read, Add)

	src := Create()
	src.SetMode(User, Exec, Exact)

	Merge(dest, src)
	assert.Equal(t, Exec, dest.base[User].mode)
	assert.Equal(t, Exact, dest.base[User].typ)
}

func TestComputeModeDirOverrideWinsEntirely(t *testing.T) {
	p := Create()
	p.SetMode(User, Read, Exact)
	p.SetDirMode(User, Read|Write|Exec, Exact)

	shift := [numWho]uint{6, 3, 0}

	fileMode := computeMode(p, 0, shift, false)
	assert.Equal(t, Read<<6, fileMode)

	dirMode := computeMode(p, 0, shift, true)
	assert.Equal(t, (Read|Write|Exec)<<6, dirMode)
}

func TestComputeModeSkipsUnsetWho(t *testing.T) {
	p := Create()
	p.SetMode(Group, Read, Exact)
	shift := [numWho]uint{6, 3, 0}

	current := Mode(0700) // owner already rwx
	got := computeMode(p, current, shift, false)

	// owner bits untouched, group becomes read-only
	assert.Equal(t, Mode(0700)|(Read<<3), got)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "rwx", (Read | Write | Exec).String())
	assert.Equal(t, "r--", Read.String())
	assert.Equal(t, "---", Mode(0).String())
}
