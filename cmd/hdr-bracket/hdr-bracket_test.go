package main

import(
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct{
		in  []string
		exp []string
	}{
		{[]string{"5", "run1"}, []string{"--", "5", "run1"}},
		{[]string{"5", "run1", "--gain", "2"}, []string{"--gain", "2", "--", "5", "run1"}},
		{[]string{"--exp_min=10", "5", "-nofuse", "run1", "-v", "1"}, []string{"--exp_min=10", "-nofuse", "-v", "1", "--", "5", "run1"}},
		{[]string{"3", "--", "-odd"}, []string{"--", "3", "-odd"}},
	}

	for i, test := range tests {
		if diff := cmp.Diff(test.exp, reorderArgs(test.in)); diff != "" {
			t.Errorf("[t%d] reorderArgs(%v) mismatch (-want +got):\n%s", i, test.in, diff)
		}
	}
}
