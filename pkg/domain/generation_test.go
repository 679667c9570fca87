package domain

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/wpbackup/pkg/seal"
)

func TestContainerAddress(t *testing.T) {
	assert.Equal(t, "DAYJ", ContainerAddress(0))
	assert.Equal(t, "DAYJ-1", ContainerAddress(1))
	assert.Equal(t, "DAYJ-6", ContainerAddress(6))
	assert.Equal(t, "DAYJ-12", ContainerAddress(12))
}

func TestParseContainerAddress(t *testing.T) {
	cases := map[string]struct {
		generation int
		ok         bool
	}{
		"DAYJ":                    {0, true},
		"DAYJ-1":                  {1, true},
		"DAYJ-13":                 {13, true},
		"DAYJ-0":                  {0, false},
		"DAYJ-01":                 {0, false},
		"DAYJ--1":                 {0, false},
		"DAYJX":                   {0, false},
		"DAYJ-":                   {0, false},
		"RESTORE-20261018T031500": {0, false},
	}

	for name, c := range cases {
		generation, ok := ParseContainerAddress(name)

		assert.Equal(t, c.ok, ok, name)
		assert.Equal(t, c.generation, generation, name)
	}
}

func TestResolveGeneration(t *testing.T) {
	address, err := ResolveGeneration(0, 7)
	assert.NoError(t, err)
	assert.Equal(t, "DAYJ", address)

	address, err = ResolveGeneration(3, 7)
	assert.NoError(t, err)
	assert.Equal(t, "DAYJ-3", address)

	address, err = ResolveGeneration(6, 7)
	assert.NoError(t, err)
	assert.Equal(t, "DAYJ-6", address)

	for _, generation := range []int{7, 8, -1} {
		_, err = ResolveGeneration(generation, 7)

		var domainErr *Error
		require.True(t, errors.As(err, &domainErr), "generation %d", generation)
		assert.Equal(t, KindResolution, domainErr.Kind)
		assert.Equal(t, StageResolve, domainErr.Stage)
	}
}

func TestIsRotationDue(t *testing.T) {
	assert.False(t, IsRotationDue("20261018", "20261018"))
	assert.True(t, IsRotationDue("20261017", "20261018"))
	assert.True(t, IsRotationDue("20261019", "20261018"), "clock moved backwards still rotates once")
	assert.False(t, IsRotationDue("", "20261018"))
}

func TestMembers(t *testing.T) {
	assert.Equal(t, []string{"wordpress.sql.gz", "wordpress.site.tar.gz", "date.txt"}, Members("wordpress"))
	assert.Equal(t, "date.txt.bin", Sealed(MarkerFile))
}

func TestSealed_MatchesSealerOutput(t *testing.T) {
	key := make([]byte, seal.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	sealer, err := seal.New(key)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), []byte("20261018"), 0640))

	sealed, err := sealer.Seal(filepath.Join(dir, MarkerFile))

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Sealed(MarkerFile)), sealed)
}

func TestNewErrorReport(t *testing.T) {
	assert.Nil(t, NewErrorReport(nil))

	err := &Error{
		Stage:   StageUpload,
		Kind:    KindTransfer,
		Backend: "ftp",
		Op:      "upload",
		Address: "DAYJ/date.txt.bin",
		Err:     &TransferError{Op: "upload", Address: "DAYJ/date.txt.bin", Timeout: true, Err: errors.New("i/o timeout")},
	}

	report := NewErrorReport(err)

	assert.Equal(t, StageUpload, report.Stage)
	assert.Equal(t, KindTransfer, report.Kind)
	assert.Equal(t, "ftp", report.Backend)
	assert.True(t, report.Transient)
	assert.Equal(t, "upload failed (transfer) on ftp: upload DAYJ/date.txt.bin: upload DAYJ/date.txt.bin: i/o timeout", report.Message)
}

func TestAtStage(t *testing.T) {
	tagged := atStage(StageRotateRemote, KindShiftFailed, &Error{Kind: KindEvictionFailed, Op: "remove_dir"})

	var domainErr *Error
	require.True(t, errors.As(tagged, &domainErr))
	assert.Equal(t, StageRotateRemote, domainErr.Stage)
	assert.Equal(t, KindEvictionFailed, domainErr.Kind)

	tagged = atStage(StageDump, KindDump, &TransferError{Op: "list", Address: "/", Err: errors.New("denied")})

	require.True(t, errors.As(tagged, &domainErr))
	assert.Equal(t, StageDump, domainErr.Stage)
	assert.Equal(t, "list", domainErr.Op)
	assert.Equal(t, "/", domainErr.Address)
}
