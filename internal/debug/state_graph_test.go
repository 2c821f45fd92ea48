package debug

import (
	"bytes"
	"strings"
	"testing"

	"nescore/internal/state"
)

func TestBuildStateTree_ShouldNestScopes(t *testing.T) {
	snap := state.Snapshot{
		"cpu.pc":          {0x00, 0x80},
		"apu.dmc.shift":   {0x01},
		"apu.frame_cycle": {0, 0, 0, 0},
		"console.cycles":  make([]byte, 8),
	}
	root := BuildStateTree(snap)

	scopes := map[string]*StateNode{}
	for _, child := range root.Children {
		scopes[child.Scope] = child
	}
	if len(scopes) != 3 {
		t.Fatalf("top-level scopes = %d, want 3", len(scopes))
	}
	apu := scopes["apu"]
	if apu == nil || len(apu.Children) != 1 || apu.Children[0].Scope != "dmc" {
		t.Fatalf("apu scope = %+v", apu)
	}
	if len(apu.Fields) != 1 || apu.Fields[0] != "frame_cycle (4 bytes)" {
		t.Errorf("apu fields = %v", apu.Fields)
	}
	if f := scopes["cpu"].Fields; len(f) != 1 || f[0] != "pc (2 bytes)" {
		t.Errorf("cpu fields = %v", f)
	}
}

func TestBuildStateTree_ShouldOrderScopesAndFields(t *testing.T) {
	snap := state.Snapshot{
		"ppu.scanline": {0},
		"cpu.y":        {0},
		"apu.status":   {0},
		"cpu.a":        {0},
		"cpu.x":        {0},
	}
	for i := 0; i < 10; i++ {
		root := BuildStateTree(snap)
		var scopes []string
		for _, child := range root.Children {
			scopes = append(scopes, child.Scope)
		}
		if got := strings.Join(scopes, ","); got != "apu,cpu,ppu" {
			t.Fatalf("scopes = %s, want apu,cpu,ppu", got)
		}
		if got := strings.Join(root.Children[1].Fields, ","); got != "a (1 bytes),x (1 bytes),y (1 bytes)" {
			t.Fatalf("cpu fields = %s", got)
		}
	}
}

func TestWriteStateGraph_ShouldEmitDot(t *testing.T) {
	var out bytes.Buffer
	WriteStateGraph(&out, state.Snapshot{"cpu.a": {1}})
	if !strings.Contains(out.String(), "digraph") {
		t.Errorf("output is not a dot graph:\n%s", out.String())
	}
}
