package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/sidkik/bak/pkg/errors"
)

func TestSyncMapUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		exp      SyncMap
		expError error
	}{
		{
			name:  "SingleRemote",
			input: "~/docs: /media/a/\n",
			exp: SyncMap{
				{Local: "~/docs", Remotes: []string{"/media/a/"}, Line: 1},
			},
		},
		{
			name: "RemoteList",
			input: `
~/docs:
  - /media/a/
  - /media/b/{x,y}/
`,
			exp: SyncMap{
				{Local: "~/docs", Remotes: []string{"/media/a/", "/media/b/{x,y}/"}, Line: 2},
			},
		},
		{
			name: "PreservesOrder",
			input: `
zeta: /media/a/
alpha: /media/b/
mid: /media/c/
`,
			exp: SyncMap{
				{Local: "zeta", Remotes: []string{"/media/a/"}, Line: 2},
				{Local: "alpha", Remotes: []string{"/media/b/"}, Line: 3},
				{Local: "mid", Remotes: []string{"/media/c/"}, Line: 4},
			},
		},
		{
			name:  "NumberRemote",
			input: "~/docs: 42\n",
			expError: errors.ConfigShapeError{
				Section: "sync",
				Key:     "~/docs",
				Line:    1,
				Reason:  `remote "42" is not a string`,
			},
		},
		{
			name:  "EmptyList",
			input: "~/docs: []\n",
			expError: errors.ConfigShapeError{
				Section: "sync",
				Key:     "~/docs",
				Line:    1,
				Reason:  "remote list is empty",
			},
		},
		{
			name: "NestedList",
			input: `
~/docs:
  - [/media/a/]
`,
			expError: errors.ConfigShapeError{
				Section: "sync",
				Key:     "~/docs",
				Line:    2,
				Reason:  "line 3: remote list items must be strings",
			},
		},
		{
			name:  "NotAMapping",
			input: "- /media/a/\n",
			expError: errors.ConfigShapeError{
				Section: "sync",
				Line:    1,
				Reason:  "expected a mapping from local paths to remote directories",
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var m SyncMap
			err := yaml.Unmarshal([]byte(test.input), &m)
			assert.Equal(t, test.expError, err)
			if test.expError == nil {
				assert.Equal(t, test.exp, m)
			}
		})
	}
}

func TestSyncMapMarshal(t *testing.T) {
	m := SyncMap{
		{Local: "~/docs", Remotes: []string{"/media/a/"}},
		{Local: "~/code", Remotes: []string{"/media/a/", "/media/b/"}},
	}

	out, err := yaml.Marshal(m)
	assert.NoError(t, err)
	assert.Equal(t, "~/docs: /media/a/\n~/code:\n    - /media/a/\n    - /media/b/\n", string(out))
}
