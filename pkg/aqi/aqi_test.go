package aqi

import "testing"

func TestRiskScoreBoundaries(t *testing.T) {
	tests := []struct {
		aqi       int
		wantScore int
		wantLabel string
	}{
		{0, 1, "Low Risk"},
		{50, 1, "Low Risk"},
		{51, 2, "Low-Moderate Risk"},
		{100, 2, "Low-Moderate Risk"},
		{101, 3, "Moderate Risk"},
		{150, 3, "Moderate Risk"},
		{151, 4, "High-Moderate Risk"},
		{200, 4, "High-Moderate Risk"},
		{201, 5, "High Risk"},
		{999, 5, "High Risk"},
	}
	for _, tt := range tests {
		score, label := RiskScore(tt.aqi)
		if score != tt.wantScore || label != tt.wantLabel {
			t.Errorf("RiskScore(%d)=(%d,%q) want (%d,%q)", tt.aqi, score, label, tt.wantScore, tt.wantLabel)
		}
	}
}

func TestCategoryAndColor(t *testing.T) {
	tests := []struct {
		aqi      int
		category string
		color    string
	}{
		{12, "Good", "#00E400"},
		{75, "Moderate", "#FFFF00"},
		{101, "Unhealthy for Sensitive Groups", "#FF7E00"},
		{200, "Unhealthy", "#FF0000"},
		{300, "Very Unhealthy", "#8F3F97"},
		{301, "Hazardous", "#7E0023"},
	}
	for _, tt := range tests {
		if got := Category(tt.aqi); got != tt.category {
			t.Errorf("Category(%d)=%q want %q", tt.aqi, got, tt.category)
		}
		if got := Color(tt.aqi); got != tt.color {
			t.Errorf("Color(%d)=%q want %q", tt.aqi, got, tt.color)
		}
	}
}

func TestMarkerRGB(t *testing.T) {
	if got := MarkerRGB(250); got != [3]uint8{153, 0, 76} {
		t.Fatalf("MarkerRGB(250)=%v", got)
	}
	if got := MarkerRGB(120); got != [3]uint8{255, 165, 0} {
		t.Fatalf("MarkerRGB(120)=%v", got)
	}
}

func TestGaugeFraction(t *testing.T) {
	tests := []struct {
		aqi  int
		want float64
	}{
		{-5, 0},
		{0, 0},
		{250, 0.5},
		{500, 1},
		{800, 1},
	}
	for _, tt := range tests {
		if got := GaugeFraction(tt.aqi); got != tt.want {
			t.Errorf("GaugeFraction(%d)=%v want %v", tt.aqi, got, tt.want)
		}
	}
}

func TestHighlight(t *testing.T) {
	for aqi, want := range map[int]string{50: "good", 51: "moderate", 100: "moderate", 101: "poor"} {
		if got := Highlight(aqi); got != want {
			t.Errorf("Highlight(%d)=%q want %q", aqi, got, want)
		}
	}
}

func TestLevelsIsACopy(t *testing.T) {
	l := Levels()
	if len(l) != 6 {
		t.Fatalf("len(Levels())=%d want 6", len(l))
	}
	l[0].Name = "changed"
	if Levels()[0].Name != "Good" {
		t.Fatal("Levels() exposed internal table")
	}
}

func TestRecommendations(t *testing.T) {
	tests := map[int]string{1: "low", 2: "low", 3: "moderate", 4: "high", 5: "high"}
	for score, tier := range tests {
		rec := Recommendations(score)
		if rec.Tier != tier {
			t.Errorf("Recommendations(%d).Tier=%q want %q", score, rec.Tier, tier)
		}
		if len(rec.Items) == 0 {
			t.Errorf("Recommendations(%d) has no items", score)
		}
	}
}

func TestNormalizePollutant(t *testing.T) {
	tests := map[string]string{
		"p1":    PM10,
		"p2":    PM25,
		"P2":    PM25,
		"n2":    NO2,
		"s2":    SO2,
		"pm25":  PM25,
		"o3":    O3,
		"co":    CO,
		"nh3":   "",
		"bogus": "",
	}
	for in, want := range tests {
		if got := NormalizePollutant(in); got != want {
			t.Errorf("NormalizePollutant(%q)=%q want %q", in, got, want)
		}
	}
}

func TestPollutantFullName(t *testing.T) {
	if got := PollutantFullName("p2"); got != "PM2.5 (Fine Particulate Matter)" {
		t.Fatalf("got %q", got)
	}
	if got := PollutantFullName("pm25"); got != "PM2.5 (Fine Particulate Matter)" {
		t.Fatalf("got %q", got)
	}
	if got := PollutantFullName("xx"); got != "xx" {
		t.Fatalf("unknown code should pass through, got %q", got)
	}
}

func TestEffectAndMitigationFallback(t *testing.T) {
	if Effect("p1") != effects[PM10] {
		t.Fatal("Effect(p1) should resolve through aliases")
	}
	if Effect("nh3") != noEffectInfo {
		t.Fatal("Effect(nh3) should fall back")
	}
	if Mitigation("so2") != mitigations[SO2] {
		t.Fatal("Mitigation(so2) mismatch")
	}
	if Mitigation("") != noMitigationInfo {
		t.Fatal("Mitigation(\"\") should fall back")
	}
}

func TestLevelColor(t *testing.T) {
	tests := []struct {
		value, safe float64
		want        string
	}{
		{5, 10, "#00E400"},
		{10, 10, "#FFFF00"},
		{15, 10, "#FF7E00"},
		{20, 10, "#FF0000"},
		{21, 10, "#8F3F97"},
		{1, 0, "#8F3F97"},
	}
	for _, tt := range tests {
		if got := LevelColor(tt.value, tt.safe); got != tt.want {
			t.Errorf("LevelColor(%v,%v)=%q want %q", tt.value, tt.safe, got, tt.want)
		}
	}
}

func TestLookupPollutant(t *testing.T) {
	p, ok := LookupPollutant(PM25)
	if !ok || p.SafeLevel != 10 {
		t.Fatalf("LookupPollutant(pm2_5)=%+v,%v", p, ok)
	}
	if _, ok := LookupPollutant("p2"); ok {
		t.Fatal("LookupPollutant should only accept canonical codes")
	}
}
