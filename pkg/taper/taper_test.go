package taper

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSpecies(t *testing.T) {
	cases := []struct {
		raw  string
		want Species
	}{
		{"PSME", DouglasFir},
		{"psme", DouglasFir},
		{" tshe ", WesternHemlock},
		{"Alru2", RedAlder},
	}
	for _, tc := range cases {
		got, err := ParseSpecies(tc.raw)
		if err != nil {
			t.Fatalf("ParseSpecies(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSpecies(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestParseSpeciesSuggestsClosestCode(t *testing.T) {
	_, err := ParseSpecies("PSEM")
	if !errors.Is(err, ErrUnknownSpecies) {
		t.Fatalf("expected ErrUnknownSpecies, got %v", err)
	}
	if !strings.Contains(err.Error(), "did you mean PSME") {
		t.Fatalf("expected suggestion in %q", err.Error())
	}

	_, err = ParseSpecies("QUERCUS")
	if !errors.Is(err, ErrUnknownSpecies) {
		t.Fatalf("expected ErrUnknownSpecies, got %v", err)
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Fatalf("did not expect a suggestion for a distant code: %q", err.Error())
	}

	if _, err := ParseSpecies(""); !errors.Is(err, ErrUnknownSpecies) {
		t.Fatalf("expected empty code to fail, got %v", err)
	}
}

func TestKozakProfileShape(t *testing.T) {
	provider := Providers()[DouglasFir]
	const dbh, height = 60.0, 40.0

	atBreastHeight := provider.DiameterInsideBark(dbh, height, BreastHeight)
	if atBreastHeight <= 0.8*dbh || atBreastHeight >= dbh {
		t.Fatalf("dib at breast height %.2f not a plausible inside-bark fraction of %.0f", atBreastHeight, dbh)
	}

	previous := provider.DiameterInsideBark(dbh, height, BreastHeight)
	for h := 2.0; h < height; h += 2 {
		dib := provider.DiameterInsideBark(dbh, height, h)
		if dib > previous {
			t.Fatalf("dib increased from %.3f to %.3f at %.1f m", previous, dib, h)
		}
		previous = dib
	}

	if tip := provider.DiameterInsideBark(dbh, height, height); tip != 0 {
		t.Fatalf("expected zero diameter at the tip, got %v", tip)
	}
	if above := provider.DiameterInsideBark(dbh, height, height+1); above != 0 {
		t.Fatalf("expected zero diameter above the tip, got %v", above)
	}
	if short := provider.DiameterInsideBark(dbh, 1.0, 0.5); short != 0 {
		t.Fatalf("expected zero diameter for a tree below breast height, got %v", short)
	}
	if stump := provider.DiameterInsideBark(dbh, height, 0.15); stump <= atBreastHeight {
		t.Fatalf("expected butt swell below breast height, stump %.2f breast %.2f", stump, atBreastHeight)
	}
}

func TestNeiloidHeightIsCapped(t *testing.T) {
	k := KozakTaper{NeiloidIntercept: 0.5, NeiloidSlope: 0.025, NeiloidMaxFraction: 0.15}
	if got := k.NeiloidHeight(60, 40); got != 2.0 {
		t.Fatalf("expected 2.0 m neiloid height, got %v", got)
	}
	if got := k.NeiloidHeight(100, 10); got != 1.5 {
		t.Fatalf("expected neiloid height capped at 1.5 m, got %v", got)
	}
}

func TestProvidersOmitUnmerchantableSpecies(t *testing.T) {
	providers := Providers()
	for _, s := range []Species{BigleafMaple, PacificMadrone} {
		if _, ok := providers[s]; ok {
			t.Fatalf("did not expect a provider for %s", s)
		}
	}
	delete(providers, DouglasFir)
	if _, ok := Providers()[DouglasFir]; !ok {
		t.Fatalf("Providers must return a copy")
	}
}

func TestDefaultScalingParametersValidate(t *testing.T) {
	for _, s := range KnownSpecies() {
		if err := DefaultScalingParameters(s).Validate(); err != nil {
			t.Fatalf("%s defaults invalid: %v", s, err)
		}
	}
	p := DefaultScalingParameters(DouglasFir)
	if p.MinimumScalingDiameter4Saw != 12.7 || p.MinimumLogLength4Saw != 2.44 {
		t.Fatalf("unexpected 4-saw limits: %+v", p)
	}
}

func TestScalingParametersValidateRejects(t *testing.T) {
	cases := map[string]func(*ScalingParameters){
		"zero maximum diameter": func(p *ScalingParameters) { p.MaximumDiameter = 0 },
		"negative kerf":         func(p *ScalingParameters) { p.KerfAllowance = -0.01 },
		"inverted diameters":    func(p *ScalingParameters) { p.MinimumScalingDiameter3Saw = 40 },
		"inverted lengths":      func(p *ScalingParameters) { p.MinimumLogLength4Saw = 5 },
		"short table":           func(p *ScalingParameters) { p.MaximumHeight = 2 },
	}
	for name, mutate := range cases {
		p := DefaultScalingParameters(DouglasFir)
		mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidParameters) {
			t.Fatalf("%s: expected ErrInvalidParameters, got %v", name, err)
		}
	}
}
