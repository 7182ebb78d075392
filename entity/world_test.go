package entity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncarena/replica"
)

func TestBuildWorld_Errors(t *testing.T) {
	tests := []struct {
		name  string
		specs []ObjectSpec
	}{
		{"empty name", []ObjectSpec{{Kind: "door"}}},
		{"duplicate", []ObjectSpec{{Name: "a", Kind: "door"}, {Name: "a", Kind: "door"}}},
		{"not static", []ObjectSpec{{Name: "a", Kind: "character"}}},
		{"dangling reference", []ObjectSpec{{Name: "a", Kind: "button", Triggers: []string{"b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildWorld(tt.specs)
			assert.ErrorIs(t, err, ErrBadLayout)
		})
	}

	_, err := BuildWorld([]ObjectSpec{{Name: "a", Kind: "sofa"}})
	assert.Error(t, err)
}

func TestWorld_ClientReproducesServerIDs(t *testing.T) {
	server, serverReg := newWorld(t)
	ids := serverReg.StaticIDs()

	layout := DefaultLayout()
	rand.New(rand.NewSource(7)).Shuffle(len(layout), func(i, j int) { layout[i], layout[j] = layout[j], layout[i] })
	client, err := BuildWorld(layout)
	require.NoError(t, err)
	clientReg := replica.NewRegistry(replica.RoleClient, nil)
	_, err = clientReg.AssignStaticIDs(client.Statics(), ids)
	require.NoError(t, err)
	client.Link()

	for _, spec := range DefaultLayout() {
		s := mustLookup(t, server, spec.Name)
		c := mustLookup(t, client, spec.Name)
		assert.Equal(t, s.ID(), c.ID(), spec.Name)
	}

	sb := mustLookup(t, server, "door_button").(*Button)
	cb := mustLookup(t, client, "door_button").(*Button)
	assert.Equal(t, sb.Triggers, cb.Triggers)
}

func TestWorld_LinkResolvesComputerRefs(t *testing.T) {
	w, _ := newWorld(t)
	computer := mustLookup(t, w, "terminal").(*Computer)
	assert.Equal(t, mustLookup(t, w, "terminal_left").ID(), computer.KeyLeft)
	assert.Equal(t, mustLookup(t, w, "terminal_right").ID(), computer.KeyRight)
	assert.Equal(t, mustLookup(t, w, "terminal_screen").ID(), computer.Hologram)
}
