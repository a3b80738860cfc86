package llm

import "testing"

func TestParseProviderType(t *testing.T) {
	cases := []struct {
		input string
		want  ProviderType
	}{
		{"openai", ProviderOpenAI},
		{"GPT", ProviderOpenAI},
		{"anthropic", ProviderAnthropic},
		{"Claude", ProviderAnthropic},
		{"gemini", ProviderGemini},
		{"google", ProviderGemini},
	}
	for _, tc := range cases {
		got, err := ParseProviderType(tc.input)
		if err != nil {
			t.Errorf("ParseProviderType(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}

	if _, err := ParseProviderType("mistral"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestProviderDefaults(t *testing.T) {
	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if p.DefaultModel() == "" {
			t.Errorf("%v has no default model", p)
		}
		if p.EnvVar() == "" {
			t.Errorf("%v has no API key env var", p)
		}
	}
}

func TestBuilderAppliesModel(t *testing.T) {
	provider, err := ProviderGemini.Model(ModelGeminiPro3).APIKey("test-key")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if provider.Model() != ModelGeminiPro3 {
		t.Errorf("expected model %s, got %s", ModelGeminiPro3, provider.Model())
	}
	if provider.Name() != "gemini" {
		t.Errorf("expected provider gemini, got %s", provider.Name())
	}
}
