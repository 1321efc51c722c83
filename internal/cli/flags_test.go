package cli

import (
	stderrors "errors"
	"testing"

	"github.com/rileyhilliard/sitepush/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFlagError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unknown long", "unknown flag: --bogus", "unknown option --bogus"},
		{"unknown shorthand", "unknown shorthand flag: 'x' in -x", "unknown option -x"},
		{"grouped shorthand", "unknown shorthand flag: 'q' in -vq", "unknown option -vq"},
		{"missing long value", "flag needs an argument: --host", "missing value for --host"},
		{"missing shorthand value", "flag needs an argument: 'f' in -f", "missing value for -f"},
		{"duration swallowed option", `invalid argument "--dry-run" for "--ssh-timeout" flag: time: invalid duration "--dry-run"`, "missing value for --ssh-timeout"},
		{"shorthand flag swallowed option", `invalid argument "--host" for "-t, --timeout" flag: time: invalid duration "--host"`, "missing value for --timeout"},
		{"bad duration", `invalid argument "soon" for "--ssh-timeout" flag: time: invalid duration "soon"`, `invalid argument "soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateFlagError(stderrors.New(tt.in))

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrUsage))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckFlagValues(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		addDeployFlags(fs, &globalFlags{})
		return fs
	}

	t.Run("swallowed option", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--host", "--dry-run"}))

		err := checkFlagValues(fs)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing value for --host")
	})

	t.Run("normal values", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--host", "web1", "--build", "make -j4 --silent", "--dry-run"}))

		assert.NoError(t, checkFlagValues(fs))
	})

	t.Run("single dash value is allowed", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--migrate", "-"}))

		assert.NoError(t, checkFlagValues(fs))
	})
}

func TestShorthandToken(t *testing.T) {
	assert.Equal(t, "-x", shorthandToken("'x' in -x"))
	assert.Equal(t, "--host", shorthandToken("--host"))
}
