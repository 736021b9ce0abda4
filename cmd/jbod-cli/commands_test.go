package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pior/jbod"
	"github.com/pior/jbod/internal/testutils"
	"github.com/pior/jbod/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) {
	t.Helper()
	stub := testutils.NewStubServer(t, testutils.DiskHandler())

	var err error
	client, err = jbod.NewClient(stub.Addr(), jbod.Config{})
	require.NoError(t, err)
	log = hclog.NewNullLogger()

	t.Cleanup(func() {
		client.Close()
		client = nil
	})
}

func TestShell(t *testing.T) {
	setupTestClient(t)

	in := strings.NewReader("help\nmount\nwrite 0xaa\nread\nbogus\nstats\nquit\nmount\n")
	var out bytes.Buffer
	require.NoError(t, shell(context.Background(), in, &out))

	output := out.String()
	assert.Contains(t, output, "mount(0x00000000) ok")
	assert.Contains(t, output, "write-block(0x00005000) ok")
	assert.Contains(t, output, "00000000  aa aa aa aa")
	assert.Contains(t, output, `unknown command "bogus"`)
	assert.Contains(t, output, "Blocks: read 1, written 1")
	assert.Contains(t, output, "Goodbye!")
	assert.Equal(t, 1, strings.Count(output, "mount(0x00000000) ok"), "input after quit is ignored")
}

func TestShellSeek(t *testing.T) {
	setupTestClient(t)

	script := strings.Join([]string{
		"mount",
		"seek-disk 1", "seek-block 5", "write 0x11",
		"seek-block 6", "write 0x22",
		"seek-block 5", "read",
		"seek-disk",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, shell(context.Background(), strings.NewReader(script), &out))

	output := out.String()
	assert.Contains(t, output, "seek-to-disk(0x00002001) ok")
	assert.Contains(t, output, "seek-to-block(0x00003005) ok")
	assert.Contains(t, output, "00000000  11 11 11 11")
	assert.NotContains(t, output, "00000000  22 22")
	assert.Contains(t, output, "usage: seek-disk <target>")
}

func TestRunReportsErrorKind(t *testing.T) {
	setupTestClient(t)

	err := run(context.Background(), &bytes.Buffer{}, wire.NewOpcode(wire.CmdUnmount, 0), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol error")
}

func TestParseFraming(t *testing.T) {
	f, err := parseFraming("compact")
	require.NoError(t, err)
	assert.Equal(t, wire.FramingCompact, f)

	f, err = parseFraming("uniform")
	require.NoError(t, err)
	assert.Equal(t, wire.FramingUniform, f)

	_, err = parseFraming("wide")
	require.Error(t, err)
}

func TestParseUint32(t *testing.T) {
	v, err := parseUint32("0x5000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x5000), v)

	v, err = parseUint32("42")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	_, err = parseUint32("0x100000000")
	require.Error(t, err)
}
