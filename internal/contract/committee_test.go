package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lanea/internal/types"
)

func validOutputJSON(t *testing.T, mutate func(m map[string]interface{})) []byte {
	t.Helper()
	m := map[string]interface{}{
		"scope": "repo:repo-a",
		"facts": []interface{}{
			map[string]interface{}{"text": "entrypoint", "evidence_refs": []interface{}{"E1"}},
		},
		"assumptions":       []interface{}{},
		"unknowns":          []interface{}{},
		"integration_edges": []interface{}{},
		"risks":             []interface{}{},
		"verdict":           "evidence_valid",
	}
	if mutate != nil {
		mutate(m)
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

func TestValidateCommitteeOutputAccepts(t *testing.T) {
	rep := Validate(KindCommitteeOutput, validOutputJSON(t, nil))
	require.True(t, rep.OK, "errors: %v", rep.Errors)

	out := rep.Normalized.(*types.CommitteeOutput)
	require.Equal(t, "repo:repo-a", out.Scope)
	require.Len(t, out.Facts, 1)
}

func TestValidateCommitteeOutputRejectsUnknownField(t *testing.T) {
	rep := Validate(KindCommitteeOutput, validOutputJSON(t, func(m map[string]interface{}) {
		m["surprise"] = true
	}))
	require.False(t, rep.OK)
	require.NotEmpty(t, rep.Errors)
}

func TestValidateCommitteeOutputRejectsBadVerdict(t *testing.T) {
	rep := Validate(KindCommitteeOutput, validOutputJSON(t, func(m map[string]interface{}) {
		m["verdict"] = "looks_fine"
	}))
	require.False(t, rep.OK)
}

func TestValidateCommitteeOutputRejectsNonJSON(t *testing.T) {
	rep := Validate(KindCommitteeOutput, []byte("I think the evidence is valid."))
	require.False(t, rep.OK)
}

func TestNormalizeCapsAndSorts(t *testing.T) {
	facts := make([]interface{}, 0, 25)
	for i := 24; i >= 0; i-- {
		facts = append(facts, map[string]interface{}{
			"text":          fmt.Sprintf("fact-%02d", i),
			"evidence_refs": []interface{}{"E2", "E1", "E1"},
		})
	}
	rep := Validate(KindCommitteeOutput, validOutputJSON(t, func(m map[string]interface{}) {
		m["facts"] = facts
		m["risks"] = []interface{}{"z", "a", "a"}
	}))
	require.True(t, rep.OK, "errors: %v", rep.Errors)

	out := rep.Normalized.(*types.CommitteeOutput)
	require.Len(t, out.Facts, MaxListEntries)
	require.Equal(t, "fact-00", out.Facts[0].Text)
	require.True(t, sortedStrings(factTexts(out.Facts)))
	require.Equal(t, []string{"E1", "E2"}, out.Facts[0].EvidenceRefs)
	require.Equal(t, []string{"a", "z"}, out.Risks)
}

func TestValidateEvidenceRefLineRange(t *testing.T) {
	good := `{"evidence_id":"E1","repo_id":"repo-a","commit_sha":"abc","file_path":"src/index.js","start_line":3,"end_line":9}`
	require.True(t, Validate(KindEvidenceRef, []byte(good)).OK)

	bad := strings.Replace(good, `"end_line":9`, `"end_line":2`, 1)
	rep := Validate(KindEvidenceRef, []byte(bad))
	require.False(t, rep.OK)
	require.Contains(t, rep.Errors[0], "line range")
}

func TestValidateSufficiencyRecordBlockersRule(t *testing.T) {
	rec := types.SufficiencyRecord{
		Scope:            "system",
		KnowledgeVersion: "v1",
		Status:           types.SufficiencySufficient,
		Blockers:         []types.SufficiencyBlocker{{ID: "b1", Title: "left over"}},
		StaleStatus:      types.StaleStatusFresh,
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.False(t, Validate(KindSufficiencyRecord, data).OK)

	rec.Blockers = nil
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	require.True(t, Validate(KindSufficiencyRecord, data).OK)
}

func factTexts(facts []types.CommitteeClaim) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.Text
	}
	return out
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return false
		}
	}
	return true
}
