package selector

import "testing"

func TestSortCandidatesMinBalanceFirst(t *testing.T) {
	in := []Candidate{{Address: "a", AvailableBalance: 30}, {Address: "b", AvailableBalance: 10}, {Address: "c", AvailableBalance: 20}}
	got := sortCandidates(in, MinBalanceFirst)
	if got[0].Address != "b" || got[1].Address != "c" || got[2].Address != "a" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestSortCandidatesMaxBalanceFirst(t *testing.T) {
	in := []Candidate{{Address: "a", AvailableBalance: 30}, {Address: "b", AvailableBalance: 10}, {Address: "c", AvailableBalance: 20}}
	got := sortCandidates(in, MaxBalanceFirst)
	if got[0].Address != "a" || got[1].Address != "c" || got[2].Address != "b" {
		t.Errorf("unexpected order: %+v", got)
	}
}
