package policytranslate

import (
	"context"
	"testing"

	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

func TestTranslateRequireStatement(t *testing.T) {
	tr := NewKeywordTranslator()
	rules, err := tr.Translate(context.Background(), "require architect for approve_policy")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].MinRole != metapolicy.Architect || rules[0].Action != metapolicy.ActionApprovePolicy {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestTranslateRestrictStatement(t *testing.T) {
	tr := NewKeywordTranslator()
	rules, err := tr.Translate(context.Background(), "restrict delete_policy above high")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].Risk != metapolicy.RiskHigh {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestTranslateRejectsUnrecognizedStatement(t *testing.T) {
	tr := NewKeywordTranslator()
	if _, err := tr.Translate(context.Background(), "do something vague"); err == nil {
		t.Fatal("expected an error for an unrecognized statement")
	}
}
