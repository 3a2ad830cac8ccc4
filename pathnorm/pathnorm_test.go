package pathnorm

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkDots(t *testing.T) {
	got := walkDots([]string{"a", ".", "b", "..", "c"}, false)
	require.Equal(t, []string{"a", "c"}, got)
}

func TestWalkDotsNoParent(t *testing.T) {
	got := walkDots([]string{"a", "..", "b"}, true)
	require.Equal(t, []string{"a", "..", "b"}, got)
}

func TestWalkDotsLeadingDotDot(t *testing.T) {
	got := walkDots([]string{"..", "..", "a"}, false)
	require.Equal(t, []string{"..", "..", "a"}, got)
}

func TestNormalizePOSIXAbsolute(t *testing.T) {
	out, err := Normalize("/a/./b/../c", 0, POSIX)
	require.NoError(t, err)
	require.Equal(t, "/a/c", out)
}

func TestNormalizeRelativeEmptyIsDot(t *testing.T) {
	out, err := Normalize("a/..", 0, POSIX)
	require.NoError(t, err)
	require.Equal(t, ".", out)
}

func TestExpandEnvComponentDollar(t *testing.T) {
	require.NoError(t, os.Setenv("PATHNORM_TEST_VAR", "value"))
	defer os.Unsetenv("PATHNORM_TEST_VAR")

	out, err := expandEnvComponent("$PATHNORM_TEST_VAR")
	require.NoError(t, err)
	require.Equal(t, "value", out)
}

func TestExpandEnvComponentMissing(t *testing.T) {
	_, err := expandEnvComponent("$PATHNORM_TEST_VAR_MISSING_XYZ")
	require.Error(t, err)
}

func TestExpandEnvComponentPercent(t *testing.T) {
	require.NoError(t, os.Setenv("PATHNORM_TEST_VAR2", "win-value"))
	defer os.Unsetenv("PATHNORM_TEST_VAR2")

	out, err := expandEnvComponent("%PATHNORM_TEST_VAR2%")
	require.NoError(t, err)
	require.Equal(t, "win-value", out)
}

func TestNormalizeAbsoluteFlagPrependsCwd(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	out, err := Normalize("x", Absolute, POSIX)
	require.NoError(t, err)
	require.Equal(t, cwd+"/x", out)
}
