package passwd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswdCommand(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := Command()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--password", "correct horse"})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(hash, "$2a$"), hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))
}

func TestPasswdCommand_TooShort(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := Command()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--password", "short"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}
