package domain

import "testing"

func boolPtr(v bool) *bool { return &v }

func TestComputeActive_AllCombinations(t *testing.T) {
	for _, profileComplete := range []bool{false, true} {
		for _, paymentConnected := range []bool{false, true} {
			for _, hasPublished := range []bool{false, true} {
				for _, hasAny := range []bool{false, true} {
					got := ComputeActive(profileComplete, paymentConnected, hasPublished, hasAny)
					want := profileComplete && paymentConnected && (hasPublished || hasAny)
					if got != want {
						t.Errorf("ComputeActive(%v, %v, %v, %v) = %v, want %v",
							profileComplete, paymentConnected, hasPublished, hasAny, got, want)
					}
				}
			}
		}
	}
}

func TestComputeActive_NoProducts(t *testing.T) {
	if ComputeActive(true, true, false, false) {
		t.Error("expected inactive with zero products")
	}
	// One unpublished product activates via the permissive fallback.
	if !ComputeActive(true, true, false, true) {
		t.Error("expected active with one unpublished product")
	}
}

func TestResolvePaymentConnected_PriorityOrder(t *testing.T) {
	signals := []ConnectivitySignal{
		{Source: SourceUserFlag, Connected: false, Present: true},
		{Source: SourceProfileMirror, Connected: true, Present: true},
		{Source: SourceConnectivityRecord, Connected: true, Present: true},
	}
	connected, source := ResolvePaymentConnected(signals)
	if !connected {
		t.Fatal("expected connected")
	}
	if source != SourceProfileMirror {
		t.Errorf("expected first truthy source %q, got %q", SourceProfileMirror, source)
	}
}

func TestResolvePaymentConnected_SkipsAbsentSources(t *testing.T) {
	signals := []ConnectivitySignal{
		{Source: SourceUserFlag, Connected: true, Present: false},
		{Source: SourceLegacyUserFlag, Connected: true, Present: true},
	}
	connected, source := ResolvePaymentConnected(signals)
	if !connected || source != SourceLegacyUserFlag {
		t.Errorf("expected legacy source to win, got connected=%v source=%q", connected, source)
	}
}

func TestResolvePaymentConnected_NoSources(t *testing.T) {
	connected, source := ResolvePaymentConnected(nil)
	if connected || source != "" {
		t.Errorf("expected disconnected with no sources, got connected=%v source=%q", connected, source)
	}
}

func TestResolveProfileComplete_ExplicitFlagWins(t *testing.T) {
	p := ProfileSignals{ExplicitComplete: boolPtr(true)}
	if !ResolveProfileComplete(p) {
		t.Error("explicit true flag should win over empty fields")
	}

	p = ProfileSignals{
		ExplicitComplete: boolPtr(false),
		DisplayName:      "Ada",
		Bio:              "Painter",
		AvatarURL:        "https://cdn.example/avatar.png",
		GalleryCount:     6,
	}
	if ResolveProfileComplete(p) {
		t.Error("explicit false flag should win over complete fields")
	}
}

func TestResolveProfileComplete_DerivedFromFields(t *testing.T) {
	base := ProfileSignals{
		DisplayName:  "Ada",
		Bio:          "Painter",
		AvatarURL:    "https://cdn.example/avatar.png",
		GalleryCount: MinGalleryImages,
	}
	if !ResolveProfileComplete(base) {
		t.Error("expected complete with all fields present")
	}

	missingBio := base
	missingBio.Bio = "  "
	if ResolveProfileComplete(missingBio) {
		t.Error("expected incomplete with blank bio")
	}

	fewImages := base
	fewImages.GalleryCount = MinGalleryImages - 1
	if ResolveProfileComplete(fewImages) {
		t.Error("expected incomplete with too few gallery images")
	}
}
