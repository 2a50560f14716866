package items

import "testing"

func TestTextConcatenatesFragmentsInOrder(t *testing.T) {
	item := Item{Content: []ContentPart{NewTextPart("He"), NewTextPart("l"), NewTextPart("lo")}}

	if got := item.Text(); got != "Hello" {
		t.Fatalf("expected text %q, got %q", "Hello", got)
	}
}

func TestAnnotateSkipsDuplicates(t *testing.T) {
	item := Item{}
	item.Annotate(AnnotationNonDefaultLanguage, AnnotationTargetLocale)
	item.Annotate(AnnotationNonDefaultLanguage)

	if len(item.Annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %v", item.Annotations)
	}

	item.RemoveAnnotation(AnnotationTargetLocale)
	if item.HasAnnotation(AnnotationTargetLocale) {
		t.Fatalf("expected target locale annotation to be removed, got %v", item.Annotations)
	}
}
