package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

func TestResolveParams(t *testing.T) {
	global := types.NewDataTable().AddColumn("ver", "1.0", "2.0").AddColumn("host", "a", "b")
	local := types.NewDataTable().AddColumn("msg", "<ver>", "<ver>").AddColumn("host", "local-0", "local-1")

	tests := []struct {
		name      string
		globalRow int
		localRow  int
		inline    map[string]string
		want      map[string]string
	}{
		{
			name:      "reference resolves at the global row",
			globalRow: 1,
			localRow:  0,
			want:      map[string]string{"ver": "2.0", "msg": "2.0", "host": "local-0"},
		},
		{
			name:      "inline overrides local",
			globalRow: 0,
			localRow:  1,
			inline:    map[string]string{"host": "inline", "arg0": "x"},
			want:      map[string]string{"ver": "1.0", "msg": "1.0", "host": "inline", "arg0": "x"},
		},
		{
			name:      "inline embedded tokens substituted",
			globalRow: 1,
			inline:    map[string]string{"arg0": "version <ver> on <host> keeps <unknown>"},
			want:      map[string]string{"ver": "2.0", "msg": "2.0", "host": "local-0", "arg0": "version 2.0 on local-0 keeps <unknown>"},
		},
		{
			name:      "inline whole reference uses global",
			globalRow: 0,
			inline:    map[string]string{"arg0": "<host>"},
			want:      map[string]string{"ver": "1.0", "msg": "1.0", "host": "local-0", "arg0": "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveParams(global, tt.globalRow, local, tt.localRow, tt.inline)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveParams_NilTables(t *testing.T) {
	got, err := ResolveParams(nil, 0, nil, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveParams_DanglingReference(t *testing.T) {
	local := types.NewDataTable().AddColumn("msg", "<missing>")
	_, err := ResolveParams(types.NewDataTable().AddColumn("ver", "1"), 0, local, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<missing>")
}

func TestResolveParams_RowOutOfRange(t *testing.T) {
	_, err := ResolveParams(types.NewDataTable().AddColumn("ver", "1"), 3, nil, 0, nil)
	require.Error(t, err)
}
