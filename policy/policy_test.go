package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSec(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".clawsec")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileParsesKnownKeys(t *testing.T) {
	path := writeSec(t, "sandbox=strict\nids.stack.max=64\nids.alloc.rate.max=2048\n")

	got, err := LoadFile(path, Default())
	require.NoError(t, err)

	assert.Equal(t, SandboxStrict, got.Sandbox)
	assert.True(t, got.IDSEnabled)
	assert.Equal(t, 64, got.IDSStackMax)
	assert.Equal(t, uint64(2048), got.IDSAllocRateMax)
}

func TestLoadFileIgnoresUnknownKeysAndComments(t *testing.T) {
	path := writeSec(t, "# a comment\n\nfuture.flag=whatever\nsandbox=network\n")

	got, err := LoadFile(path, Default())
	require.NoError(t, err)
	assert.Equal(t, SandboxNetwork, got.Sandbox)
}

func TestLoadFileRejectsBadSandboxValue(t *testing.T) {
	path := writeSec(t, "sandbox=yolo\n")
	_, err := LoadFile(path, Default())
	assert.Error(t, err)
}

func TestLoadFileRejectsMalformedLine(t *testing.T) {
	path := writeSec(t, "not-a-key-value-pair\n")
	_, err := LoadFile(path, Default())
	assert.Error(t, err)
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.clawsec"), Default())
	assert.Error(t, err)
}

func TestDefaultFlags(t *testing.T) {
	f := Default()
	assert.Equal(t, SandboxFull, f.Sandbox)
	assert.Equal(t, uint32(1000), f.JITFunctionThreshold)
	assert.Equal(t, uint32(1000), f.JITLoopThreshold)
	assert.False(t, f.IDSEnabled)
}
