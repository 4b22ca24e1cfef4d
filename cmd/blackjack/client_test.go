package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/blackjack/internal/client"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testREPL(out io.Writer) *repl {
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	c := client.NewClient("http://127.0.0.1:1", "tester", logger)
	return newREPL(c, client.NewRenderer(false), out)
}

func TestREPLResolve(t *testing.T) {
	r := testREPL(io.Discard)
	alice := protocol.ConnKey{Name: "alice", ID: uuid.New()}
	sam1 := protocol.ConnKey{Name: "sam", ID: uuid.New()}
	sam2 := protocol.ConnKey{Name: "sam", ID: uuid.New()}
	r.roster = []protocol.ConnKey{alice, sam1, sam2}

	got, err := r.resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	got, err = r.resolve(sam2.String())
	require.NoError(t, err)
	assert.Equal(t, sam2, got)

	_, err = r.resolve("sam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use name#id")

	_, err = r.resolve("nobody")
	require.Error(t, err)
}

func TestREPLExec(t *testing.T) {
	var out bytes.Buffer
	r := testREPL(&out)

	require.NoError(t, r.exec(""))
	require.NoError(t, r.exec("help"))
	assert.Contains(t, out.String(), "Commands:")

	assert.ErrorIs(t, r.exec("quit"), errQuit)
	assert.ErrorContains(t, r.exec("join"), "usage")
	assert.ErrorContains(t, r.exec("remove"), "usage")
	assert.ErrorContains(t, r.exec("tell alice"), "usage")
	assert.ErrorContains(t, r.exec("dance"), "unknown command")
	assert.ErrorIs(t, r.exec("hit"), client.ErrNotConnected)
}
