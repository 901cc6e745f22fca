package transfer

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/resolve"
)

var batch = resolve.Batch{
	Destination: "/media/toshiba/",
	Sources:     []string{"/home/user/docs", "/home/user/code"},
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		exp  []string
	}{
		{
			name: "Default",
			exp: []string{
				"--progress",
				"--archive",
				"--delete",
				"--filter=dir-merge,- .gitignore",
				"--exclude=lost+found",
				"--exclude=.Trash-1000",
				"/home/user/docs",
				"/home/user/code",
				"/media/toshiba/",
			},
		},
		{
			name: "DryRunFAT32",
			opts: Options{DryRun: true, FAT32: true, DeleteBefore: true},
			exp: []string{
				"--progress",
				"--dry-run",
				"--recursive",
				"--links",
				"--times",
				"--devices",
				"--specials",
				"--size-only",
				"--modify-window=1",
				"--delete",
				"--delete-before",
				"--filter=dir-merge,- .gitignore",
				"--exclude=lost+found",
				"--exclude=.Trash-1000",
				"/home/user/docs",
				"/home/user/code",
				"/media/toshiba/",
			},
		},
		{
			name: "ExtraRules",
			opts: OptionsFromConfig(config.RsyncOptions{
				Filters:  []string{"- *.iso"},
				Excludes: []string{"node_modules"},
			}),
			exp: []string{
				"--progress",
				"--archive",
				"--delete",
				"--filter=dir-merge,- .gitignore",
				"--filter=- *.iso",
				"--exclude=lost+found",
				"--exclude=.Trash-1000",
				"--exclude=node_modules",
				"/home/user/docs",
				"/home/user/code",
				"/media/toshiba/",
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, Args(batch, test.opts))
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	exp := Options{FAT32: true, DeleteBefore: true}
	assert.Equal(t, exp, OptionsFromConfig(config.RsyncOptions{FAT32: true, DeleteBefore: true}))
}

// mockRsync replaces rsync with `name args...`, and records the arguments
// rsync was called with.
func mockRsync(t *testing.T, name string, args ...string) *[][]string {
	var calls [][]string
	execCommand = func(ctx context.Context, _ string, rsyncArgs ...string) *exec.Cmd {
		calls = append(calls, rsyncArgs)
		return exec.CommandContext(ctx, name, args...)
	}
	t.Cleanup(func() { execCommand = exec.CommandContext })
	return &calls
}

func newTestRunner() (Runner, *bytes.Buffer) {
	logger, _ := test.NewNullLogger()
	var stdout bytes.Buffer
	return Runner{Stdout: &stdout, Stderr: &stdout, Log: logger}, &stdout
}

func TestSync(t *testing.T) {
	calls := mockRsync(t, "echo", "sending incremental file list")
	runner, stdout := newTestRunner()

	assert.NoError(t, runner.Sync(context.Background(), batch, Options{DryRun: true}))
	assert.Equal(t, [][]string{Args(batch, Options{DryRun: true})}, *calls)
	assert.Equal(t, "sending incremental file list\n", stdout.String())
}

func TestSyncFailure(t *testing.T) {
	mockRsync(t, "false")
	runner, _ := newTestRunner()

	err := runner.Sync(context.Background(), batch, Options{})
	assert.EqualError(t, err, "rsync to /media/toshiba/: exit status 1")
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expError error
	}{
		{
			name:   "Recent",
			output: "rsync  version 3.2.7  protocol version 31",
		},
		{
			name:   "Minimum",
			output: "rsync  version 3.0.0  protocol version 30",
		},
		{
			name:     "TooOld",
			output:   "rsync  version 2.6.9  protocol version 29",
			expError: errors.NewFriendlyError("rsync 2.6.9 is too old. Please upgrade to at least 3.0.0."),
		},
		{
			name:     "Unparseable",
			output:   "openrsync: protocol 29",
			expError: errors.New(`unexpected output from rsync --version: "openrsync: protocol 29"`),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			mockRsync(t, "echo", test.output)
			err := CheckVersion(context.Background())
			if test.expError == nil {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, test.expError.Error())
			}
		})
	}
}
