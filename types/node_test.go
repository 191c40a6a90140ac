package types //nolint:revive // types is a valid package name

import (
	"testing"
)

func TestNodeMeta_Validate(t *testing.T) {
	cluster := "avg-a"
	empty := ""

	tests := []struct {
		name    string
		meta    NodeMeta
		wantErr bool
	}{
		{
			name:    "empty node_id",
			meta:    NodeMeta{NodeID: ""},
			wantErr: true,
		},
		{
			name:    "node_id with slash",
			meta:    NodeMeta{NodeID: "a/b"},
			wantErr: true,
		},
		{
			name:    "node_id with equals",
			meta:    NodeMeta{NodeID: "a=b"},
			wantErr: true,
		},
		{
			name:    "empty cluster",
			meta:    NodeMeta{NodeID: "node-1", Cluster: &empty},
			wantErr: true,
		},
		{
			name:    "valid without cluster",
			meta:    NodeMeta{NodeID: "node-1"},
			wantErr: false,
		},
		{
			name:    "valid with cluster",
			meta:    NodeMeta{NodeID: "node-1", Cluster: &cluster},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
