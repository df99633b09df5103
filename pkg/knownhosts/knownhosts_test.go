package knownhosts

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func publicKeyLine(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
}

// fakeKeyscan installs an ssh-keyscan that prints key for any host, along
// with the comment and noise lines the real tool writes.
func fakeKeyscan(t *testing.T, key string) *testutil.RecordingExecutor {
	t.Helper()
	bin := t.TempDir()
	testutil.FakeBin(t, bin, "ssh-keyscan", `
host="$3"
if [ "$2" != "22" ]; then host="[$3]:$2"; fi
case "$3" in
  empty.example.com) exit 0 ;;
esac
echo "# $3:$2 SSH-2.0-OpenSSH_9.6"
echo "this is not a key line"
echo "$host `+key+`"`)
	return &testutil.RecordingExecutor{BinDir: bin}
}

func TestRegisterAppendsOnce(t *testing.T) {
	key := publicKeyLine(t)
	file := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	exec := fakeKeyscan(t, key)
	reg := NewRegistrar(file, exec)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "bastion.example.com", 22))
	require.NoError(t, reg.Register(ctx, "bastion.example.com", 22))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "second registration adds nothing")
	assert.Equal(t, "bastion.example.com "+key, lines[0])

	assert.Equal(t, "ssh-keyscan -p 22 bastion.example.com", exec.Calls()[0].String())

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRegisterNonDefaultPort(t *testing.T) {
	key := publicKeyLine(t)
	file := filepath.Join(t.TempDir(), "known_hosts")
	reg := NewRegistrar(file, fakeKeyscan(t, key))

	require.NoError(t, reg.Register(context.Background(), "bastion.example.com", 2222))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "[bastion.example.com]:2222 "+key+"\n", string(data))
}

func TestRegisterNeverTruncates(t *testing.T) {
	file := filepath.Join(t.TempDir(), "known_hosts")
	existing := "# managed by hand\nother.example.com " + publicKeyLine(t) + "\n"
	require.NoError(t, os.WriteFile(file, []byte(existing), 0600))

	key := publicKeyLine(t)
	reg := NewRegistrar(file, fakeKeyscan(t, key))
	require.NoError(t, reg.Register(context.Background(), "bastion.example.com", 22))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), existing))
	assert.True(t, strings.HasSuffix(string(data), "bastion.example.com "+key+"\n"))
}

func TestRegisterSameKeyDifferentHost(t *testing.T) {
	key := publicKeyLine(t)
	file := filepath.Join(t.TempDir(), "known_hosts")
	reg := NewRegistrar(file, fakeKeyscan(t, key))
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "a.example.com", 22))
	require.NoError(t, reg.Register(ctx, "b.example.com", 22))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), key))
}

func TestRegisterNoKeys(t *testing.T) {
	reg := NewRegistrar(filepath.Join(t.TempDir(), "known_hosts"), fakeKeyscan(t, publicKeyLine(t)))
	err := reg.Register(context.Background(), "empty.example.com", 22)
	assert.True(t, errors.Is(err, errors.ErrCodeExecutionFailed))
}

func TestRegisterRejectsUnsafeHost(t *testing.T) {
	exec := fakeKeyscan(t, publicKeyLine(t))
	reg := NewRegistrar(filepath.Join(t.TempDir(), "known_hosts"), exec)

	err := reg.Register(context.Background(), "-oProxyCommand=sh", 22)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Empty(t, exec.Calls())
}

func TestParseLine(t *testing.T) {
	key := publicKeyLine(t)

	hosts, parsed, ok := parseLine("db1.example.com,10.0.0.1 " + key)
	require.True(t, ok)
	assert.Equal(t, []string{"db1.example.com", "10.0.0.1"}, hosts)
	assert.Equal(t, "ssh-ed25519", parsed.Type())

	for _, line := range []string{"", "   ", "# comment", "garbage", "@revoked db1 " + key} {
		_, _, ok := parseLine(line)
		assert.False(t, ok, line)
	}
}

func TestNopRegistrar(t *testing.T) {
	assert.NoError(t, NopRegistrar{}.Register(context.Background(), "anything", 22))
}
