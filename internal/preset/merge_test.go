package preset

import (
	"errors"
	"testing"
)

func TestMergeEveryOverrideCombination(t *testing.T) {
	res, steps, lip, cfg := 1024, 77, 1.3, 5.25

	for _, name := range Names() {
		p, _ := Lookup(name)
		// every subset of the four overrides
		for mask := 0; mask < 16; mask++ {
			var o Overrides
			if mask&1 != 0 {
				o.Resolution = Int(res)
			}
			if mask&2 != 0 {
				o.Steps = Int(steps)
			}
			if mask&4 != 0 {
				o.LipWeight = Float(lip)
			}
			if mask&8 != 0 {
				o.CFGScale = Float(cfg)
			}

			got := Merge(p, o)

			want := Params{p.Resolution, p.Steps, p.LipWeight, p.CFGScale}
			if mask&1 != 0 {
				want.Resolution = res
			}
			if mask&2 != 0 {
				want.Steps = steps
			}
			if mask&4 != 0 {
				want.LipWeight = lip
			}
			if mask&8 != 0 {
				want.CFGScale = cfg
			}
			if got != want {
				t.Errorf("%s mask=%04b: got %+v, want %+v", name, mask, got, want)
			}
		}
	}
}

func TestMergeIsPure(t *testing.T) {
	p, _ := Lookup("high")
	o := Overrides{Steps: Int(10)}
	a := Merge(p, o)
	b := Merge(p, o)
	if a != b {
		t.Errorf("Merge not deterministic: %+v vs %+v", a, b)
	}
	if p.Steps != 50 {
		t.Errorf("Merge mutated preset: %+v", p)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"balanced", Params{512, 40, 1.0, 3.5}, false},
		{"1024", Params{1024, 40, 1.0, 3.5}, false},
		{"bad resolution", Params{640, 40, 1.0, 3.5}, true},
		{"zero steps", Params{512, 0, 1.0, 3.5}, true},
		{"negative lip", Params{512, 40, -1, 3.5}, true},
		{"zero cfg", Params{512, 40, 1.0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParams) {
					t.Errorf("expected ErrInvalidParams, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
