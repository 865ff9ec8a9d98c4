package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestRootCmd(t *testing.T) {
	viper.Reset()

	b := bytes.NewBufferString("")
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs([]string{"--help"})

	err := rootCmd.Execute()
	assert.NoError(t, err)

	output := b.String()
	assert.Contains(t, output, "markdown knowledge graph")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Commands:")
}

func TestVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, "dev", v)
}
