package vocab

import (
	"reflect"
	"testing"
)

func TestBuild(t *testing.T) {
	seqs := [][]string{
		{"b", "a", "c", "a"},
		{"c", "b", "d", "<pad>"},
		{"a", "e"},
	}
	v := Build(seqs, 2)

	want := []string{UnkToken, PadToken, SosToken, EosToken, "a", "b", "c"}
	if !reflect.DeepEqual(v.Itos, want) {
		t.Fatalf("Itos = %v, want %v", v.Itos, want)
	}
	if v.UnkID != 0 || v.PadID != 1 || v.SosID != 2 || v.EosID != 3 {
		t.Errorf("special IDs = %d %d %d %d", v.UnkID, v.PadID, v.SosID, v.EosID)
	}
	if got := v.GetTokenID("d"); got != v.UnkID {
		t.Errorf("rare token mapped to %d, want <unk>", got)
	}
	if got := v.Encode([]string{"c", "zzz"}); !reflect.DeepEqual(got, []int{6, 0}) {
		t.Errorf("Encode = %v", got)
	}
}

func TestDecode(t *testing.T) {
	v := Build([][]string{{"hello", "world"}}, 1)
	ids := []int{v.SosID, v.GetTokenID("hello"), v.PadID, v.GetTokenID("world"), v.EosID, v.GetTokenID("hello")}
	if got := v.Decode(ids); !reflect.DeepEqual(got, []string{"hello", "world"}) {
		t.Errorf("Decode = %v", got)
	}
}
