package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var groupUnits = []Unit{
	{LocalDir: "/home/user/", FileName: "docs", RemoteDir: "/media/a/"},
	{LocalDir: "/home/user/", FileName: "docs", RemoteDir: "/media/b/backup/"},
	{LocalDir: "/home/user/", FileName: "code", RemoteDir: "/media/a/"},
	{LocalDir: "/srv/", FileName: "docs", RemoteDir: "/media/a/"},
	{LocalDir: "/home/user/", FileName: "docs", RemoteDir: "/media/a/"},
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name  string
		dir   Direction
		units []Unit
		exp   []Batch
	}{
		{
			name: "Empty",
			dir:  Push,
			exp:  nil,
		},
		{
			name:  "Push",
			dir:   Push,
			units: groupUnits,
			exp: []Batch{
				{
					Destination: "/media/a/",
					Sources: []string{
						"/home/user/docs",
						"/home/user/code",
						"/srv/docs",
						"/home/user/docs",
					},
				},
				{
					Destination: "/media/b/backup/",
					Sources:     []string{"/home/user/docs"},
				},
			},
		},
		{
			name:  "Pull",
			dir:   Pull,
			units: groupUnits,
			exp: []Batch{
				{
					Destination: "/home/user/",
					Sources: []string{
						"/media/a/docs",
						"/media/b/backup/docs",
						"/media/a/code",
						"/media/a/docs",
					},
				},
				{
					Destination: "/srv/",
					Sources:     []string{"/media/a/docs"},
				},
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.exp, Group(test.dir, test.units))
		})
	}
}

func TestGroupIsPartition(t *testing.T) {
	for _, dir := range []Direction{Push, Pull} {
		batches := Group(dir, groupUnits)

		var sources int
		destinations := map[string]bool{}
		for _, batch := range batches {
			assert.False(t, destinations[batch.Destination],
				"destination %s appears in more than one batch", batch.Destination)
			destinations[batch.Destination] = true
			sources += len(batch.Sources)
		}
		assert.Equal(t, len(groupUnits), sources)

		for _, unit := range groupUnits {
			src, dst := dir.roles(unit)
			assert.Contains(t, destinations, dst)
			assert.Contains(t, sourcesFor(batches, dst), src+unit.FileName)
		}
	}
}

func TestSwap(t *testing.T) {
	assert.Equal(t, groupUnits, Swap(Swap(groupUnits)))
	assert.Equal(t, Group(Pull, groupUnits), Group(Push, Swap(groupUnits)))
	assert.Equal(t, Group(Push, groupUnits), Group(Pull, Swap(groupUnits)))
}

func TestDirection(t *testing.T) {
	for _, dir := range []Direction{Push, Pull} {
		parsed, err := ParseDirection(dir.String())
		assert.NoError(t, err)
		assert.Equal(t, dir, parsed)
	}

	_, err := ParseDirection("sideways")
	assert.EqualError(t, err, `unknown direction "sideways"`)
	assert.Equal(t, "Direction(7)", Direction(7).String())
}

func sourcesFor(batches []Batch, destination string) []string {
	for _, batch := range batches {
		if batch.Destination == destination {
			return batch.Sources
		}
	}
	return nil
}
