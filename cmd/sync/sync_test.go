package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/bak/pkg/config"
	"github.com/sidkik/bak/pkg/errors"
	"github.com/sidkik/bak/pkg/resolve"
	"github.com/sidkik/bak/pkg/transfer"
)

type fakeMounter struct {
	active   map[string]bool
	mountErr error
	calls    []string
}

func (f *fakeMounter) IsActive(path string) (bool, error) {
	return f.active[path], nil
}

func (f *fakeMounter) Mount(_ context.Context, m config.Mount) error {
	f.calls = append(f.calls, "mount "+m.Path)
	return f.mountErr
}

func (f *fakeMounter) Unmount(_ context.Context, m config.Mount) error {
	f.calls = append(f.calls, "umount "+m.Path)
	return nil
}

func (f *fakeMounter) WaitForDevice(_ context.Context, m config.Mount, _ time.Duration) error {
	f.calls = append(f.calls, "wait "+m.Path)
	return nil
}

type syncCall struct {
	batch  resolve.Batch
	dryRun bool
}

type fakeSyncer struct {
	err   error
	calls []syncCall
}

func (f *fakeSyncer) Sync(_ context.Context, batch resolve.Batch, opts transfer.Options) error {
	f.calls = append(f.calls, syncCall{batch, opts.DryRun})
	if opts.DryRun {
		return nil
	}
	return f.err
}

type mocks struct {
	home     string
	mounter  *fakeMounter
	syncer   *fakeSyncer
	prompts  []string
	confirms bool
}

// setupMocks configures one sync entry that backs up `docs` and `code` from
// a temporary directory to a mount that doesn't exist on the machine.
func setupMocks(t *testing.T, cfgMounts []config.Mount) *mocks {
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, dir := range []string{"docs", "code"} {
		require.NoError(t, os.Mkdir(filepath.Join(home, dir), 0755))
	}

	m := &mocks{
		home:     home,
		mounter:  &fakeMounter{},
		syncer:   &fakeSyncer{},
		confirms: true,
	}

	loadConfig = func() (config.Config, error) {
		return config.Config{
			Mounts: cfgMounts,
			Sync: config.SyncMap{
				{Local: filepath.Join(home, "{docs,code}"), Remotes: []string{"/bak-test/a/"}},
			},
		}, nil
	}
	checkVersion = func(context.Context) error { return nil }
	confirm = func(msg string) (bool, error) {
		m.prompts = append(m.prompts, msg)
		return m.confirms, nil
	}
	newMounter = func() mountManager { return m.mounter }
	newSyncer = func() syncer { return m.syncer }
	return m
}

var testMount = config.Mount{Path: "/bak-test/a", DeviceID: "18a3c1b4", IsDefault: true}

func (m *mocks) pushBatch() resolve.Batch {
	return resolve.Batch{
		Destination: "/bak-test/a/",
		Sources:     []string{filepath.Join(m.home, "docs"), filepath.Join(m.home, "code")},
	}
}

func TestRunAutomount(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})

	err := run(context.Background(), resolve.Push, []string{"/bak-test"},
		options{automount: true, waitDevice: time.Second})
	assert.NoError(t, err)

	assert.Equal(t, []string{"wait /bak-test/a", "mount /bak-test/a", "umount /bak-test/a"},
		m.mounter.calls)
	assert.Equal(t, []syncCall{
		{m.pushBatch(), true},
		{m.pushBatch(), false},
	}, m.syncer.calls)
	assert.Equal(t, []string{"Sync 2 source(s) into /bak-test/a/"}, m.prompts)
}

func TestRunAlreadyMounted(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})
	m.mounter.active = map[string]bool{"/bak-test/a": true}

	err := run(context.Background(), resolve.Push, nil, options{yes: true})
	assert.NoError(t, err)
	assert.Empty(t, m.mounter.calls)
	assert.Len(t, m.syncer.calls, 2)
	assert.Empty(t, m.prompts)
}

func TestRunPull(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})
	m.mounter.active = map[string]bool{"/bak-test/a": true}

	err := run(context.Background(), resolve.Pull, []string{"/bak-test/a"}, options{yes: true})
	assert.NoError(t, err)

	exp := resolve.Batch{
		Destination: m.home + "/",
		Sources:     []string{"/bak-test/a/docs", "/bak-test/a/code"},
	}
	assert.Equal(t, []syncCall{{exp, true}, {exp, false}}, m.syncer.calls)
}

func TestRunNotMounted(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})

	err := run(context.Background(), resolve.Push, nil, options{})
	assert.Equal(t, errors.NewFriendlyError("Not mounted: /bak-test/a.\n"+
		"Mount them, or rerun with --automount."), err)
	assert.Empty(t, m.mounter.calls)
	assert.Empty(t, m.syncer.calls)
}

func TestRunDeclined(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})
	m.mounter.active = map[string]bool{"/bak-test/a": true}
	m.confirms = false

	assert.NoError(t, run(context.Background(), resolve.Push, nil, options{}))
	assert.Equal(t, []syncCall{{m.pushBatch(), true}}, m.syncer.calls)
}

func TestRunDryRunOnly(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})
	m.mounter.active = map[string]bool{"/bak-test/a": true}

	assert.NoError(t, run(context.Background(), resolve.Push, nil, options{dryRunOnly: true}))
	assert.Equal(t, []syncCall{{m.pushBatch(), true}}, m.syncer.calls)
	assert.Empty(t, m.prompts)
}

func TestRunUnmountsAfterFailure(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})
	m.syncer.err = errors.New("exit status 23")

	err := run(context.Background(), resolve.Push, nil, options{automount: true, yes: true})
	assert.EqualError(t, err, "exit status 23")
	assert.Equal(t, []string{"mount /bak-test/a", "umount /bak-test/a"}, m.mounter.calls)
}

func TestRunMountFailure(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})
	m.mounter.mountErr = errors.New("device busy")

	err := run(context.Background(), resolve.Push, nil, options{automount: true, yes: true})
	assert.EqualError(t, err, "mount /bak-test/a: device busy")
	assert.Equal(t, []string{"mount /bak-test/a"}, m.mounter.calls)
	assert.Empty(t, m.syncer.calls)
}

func TestRunNoDefaultPrefixes(t *testing.T) {
	notDefault := testMount
	notDefault.IsDefault = false
	m := setupMocks(t, []config.Mount{notDefault})

	err := run(context.Background(), resolve.Push, nil, options{})
	_, ok := errors.GetFriendlyMessage(err)
	assert.True(t, ok)
	assert.Empty(t, m.syncer.calls)
}

func TestRunNothingSelected(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount})

	assert.NoError(t, run(context.Background(), resolve.Push, []string{"/elsewhere"}, options{}))
	assert.Empty(t, m.mounter.calls)
	assert.Empty(t, m.syncer.calls)
}

func TestRunStrictMounts(t *testing.T) {
	m := setupMocks(t, []config.Mount{testMount, {Path: "/bak-test", DeviceID: "0000"}})

	err := run(context.Background(), resolve.Push, nil, options{strictMounts: true})
	assert.Equal(t, errors.AmbiguousMountError{
		Path:   "/bak-test/a/",
		Mounts: []string{"/bak-test/a", "/bak-test"},
	}, errors.RootCause(err))
	assert.Empty(t, m.syncer.calls)
}

func TestRunLogsMountCoverage(t *testing.T) {
	tests := []struct {
		name       string
		mounts     []config.Mount
		active     map[string]bool
		expMessage string
		expFields  log.Fields
	}{
		{
			name:       "NoMount",
			expMessage: "Not on any configured mount",
			expFields:  log.Fields{"dir": "/bak-test/a/"},
		},
		{
			name:       "OverlappingMounts",
			mounts:     []config.Mount{testMount, {Path: "/bak-test", DeviceID: "0000"}},
			active:     map[string]bool{"/bak-test/a": true, "/bak-test": true},
			expMessage: "On more than one configured mount",
			expFields:  log.Fields{"dir": "/bak-test/a/", "mounts": "/bak-test/a, /bak-test"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			hook := logtest.NewGlobal()
			defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

			m := setupMocks(t, test.mounts)
			m.mounter.active = test.active

			err := run(context.Background(), resolve.Push, []string{"/bak-test"}, options{yes: true})
			assert.NoError(t, err)
			assert.Len(t, m.syncer.calls, 2)

			var found bool
			for _, entry := range hook.AllEntries() {
				if entry.Message == test.expMessage {
					found = true
					assert.Equal(t, log.InfoLevel, entry.Level)
					assert.Equal(t, test.expFields, entry.Data)
				}
			}
			assert.True(t, found, "missing log entry %q", test.expMessage)
		})
	}
}
