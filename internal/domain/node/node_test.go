package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"valid", Spec{NodeID: "de-1", Endpoint: "https://de1.example.net:8000", Capacity: 100}, false},
		{"unlimited", Spec{NodeID: "nl-1", Endpoint: "http://10.0.0.2"}, false},
		{"missing id", Spec{Endpoint: "https://x"}, true},
		{"bad endpoint", Spec{NodeID: "x", Endpoint: "de1.example.net"}, true},
		{"negative capacity", Spec{NodeID: "x", Endpoint: "https://x", Capacity: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewNode_DefaultsName(t *testing.T) {
	n, err := NewNode(Spec{NodeID: "de-1", Endpoint: "https://de1"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "de-1", n.Name())
	assert.True(t, n.IsActive())

	n.Deactivate(time.Now())
	assert.False(t, n.IsActive())
}

func TestLoad_Ratio(t *testing.T) {
	assert.InDelta(t, 0.1, Load{CurrentUsers: 10, Capacity: 100}.Ratio(), 1e-9)
	assert.InDelta(t, UnlimitedLoadSentinel, Load{CurrentUsers: 5000}.Ratio(), 1e-9)
	assert.False(t, Load{CurrentUsers: 50, Capacity: 50}.HasRoom())
	assert.True(t, Load{CurrentUsers: 50}.HasRoom())
}

func TestRank_ThreeNodeScenario(t *testing.T) {
	loads := []Load{
		{NodeID: "c", CurrentUsers: 5, Capacity: 0},
		{NodeID: "b", CurrentUsers: 50, Capacity: 50},
		{NodeID: "a", CurrentUsers: 10, Capacity: 100},
	}

	ranked := Rank(loads)

	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].NodeID, "finite node wins the tie with the unlimited sentinel")
	assert.Equal(t, "c", ranked[1].NodeID)
	assert.Equal(t, "c", loads[0].NodeID, "input untouched")
}

func TestRank_TieBrokenByID(t *testing.T) {
	ranked := Rank([]Load{
		{NodeID: "fi-2", CurrentUsers: 1, Capacity: 4},
		{NodeID: "fi-1", CurrentUsers: 2, Capacity: 8},
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "fi-1", ranked[0].NodeID)
}

func TestProperty_RankIsDeterministicMinimum(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		loads := make([]Load, n)
		for i := range loads {
			loads[i] = Load{
				NodeID:       rapid.StringMatching(`[a-z]{1,3}-[0-9]`).Draw(rt, "id"),
				CurrentUsers: rapid.IntRange(0, 200).Draw(rt, "users"),
				Capacity:     rapid.IntRange(0, 200).Draw(rt, "capacity"),
			}
		}

		ranked := Rank(loads)
		shuffled := rapid.Permutation(loads).Draw(rt, "perm")
		again := Rank(shuffled)

		if len(ranked) != len(again) {
			rt.Fatalf("candidate count depends on input order")
		}
		if len(ranked) == 0 {
			for _, l := range loads {
				if l.HasRoom() {
					rt.Fatalf("node %s has room but was dropped", l.NodeID)
				}
			}
			return
		}
		if ranked[0] != again[0] && (ranked[0].NodeID != again[0].NodeID || ranked[0].Ratio() != again[0].Ratio()) {
			rt.Fatalf("selection depends on input order: %v vs %v", ranked[0], again[0])
		}
		for _, l := range ranked[1:] {
			if Less(l, ranked[0]) {
				rt.Fatalf("%v ranked after %v but is smaller", l, ranked[0])
			}
		}
	})
}
