package scenario

import (
	"errors"
	"testing"

	"gorisk/domain/core"
)

func TestTemplate_AllBuildAndValidate(t *testing.T) {
	for _, name := range TemplateNames() {
		t.Run(name, func(t *testing.T) {
			scn, err := Template(name)
			if err != nil {
				t.Fatalf("Template(%q) failed: %v", name, err)
			}
			if issues := scn.Validate(0); len(issues) != 0 {
				t.Errorf("template %q has validation issues: %v", name, issues)
			}
			if scn.Iterations != templateIterations {
				t.Errorf("template %q iterations = %d, want %d", name, scn.Iterations, templateIterations)
			}
			if scn.ConfidenceLevel != templateConfidence {
				t.Errorf("template %q confidence = %g, want %g", name, scn.ConfidenceLevel, templateConfidence)
			}
		})
	}
}

func TestTemplate_UnknownName(t *testing.T) {
	_, err := Template("does_not_exist")
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
	if !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("error = %v, want ErrTemplateNotFound", err)
	}
	if !core.IsNotFoundError(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestTemplate_ReturnsFreshCopies(t *testing.T) {
	a, err := Template("risk_assessment")
	if err != nil {
		t.Fatalf("Template failed: %v", err)
	}
	a.Variables[0].Name = "mutated"

	b, err := Template("risk_assessment")
	if err != nil {
		t.Fatalf("Template failed: %v", err)
	}
	if b.Variables[0].Name == "mutated" {
		t.Error("template copies share state")
	}
}

func TestTemplate_FingerprintsStableAndDistinct(t *testing.T) {
	seen := make(map[core.Fingerprint]string)
	for _, name := range TemplateNames() {
		scn, err := Template(name)
		if err != nil {
			t.Fatalf("Template(%q) failed: %v", name, err)
		}
		fp1, err := scn.Fingerprint()
		if err != nil {
			t.Fatalf("Fingerprint(%q) failed: %v", name, err)
		}
		fp2, err := scn.Fingerprint()
		if err != nil {
			t.Fatalf("Fingerprint(%q) failed: %v", name, err)
		}
		if fp1 != fp2 {
			t.Errorf("template %q fingerprint not stable: %s vs %s", name, fp1, fp2)
		}
		if prev, dup := seen[fp1]; dup {
			t.Errorf("templates %q and %q share fingerprint %s", name, prev, fp1)
		}
		seen[fp1] = name
	}
}

func TestTemplates_ListMatchesBuilders(t *testing.T) {
	infos := Templates()
	if len(infos) != len(TemplateNames()) {
		t.Fatalf("Templates() returned %d entries, want %d", len(infos), len(TemplateNames()))
	}
	for i, info := range infos {
		if info.Name != TemplateNames()[i] {
			t.Errorf("entry %d name = %q, want %q", i, info.Name, TemplateNames()[i])
		}
		if info.Description == "" {
			t.Errorf("template %q has no description", info.Name)
		}
		if len(info.Variables) == 0 || len(info.Outputs) == 0 {
			t.Errorf("template %q listing is missing variables or outputs", info.Name)
		}
	}
}
