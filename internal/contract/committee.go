package contract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"lanea/internal/types"
)

// MaxListEntries caps every committee output list.
const MaxListEntries = 20

// MaxIntegrationGaps caps the integration status gap list.
const MaxIntegrationGaps = 15

// committeeOutputSchema is the closed schema for one committee role's
// output. Unknown fields are rejected; the oracle must produce exactly
// this shape.
const committeeOutputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["scope", "facts", "assumptions", "unknowns", "integration_edges", "risks", "verdict"],
  "properties": {
    "scope": {"type": "string", "minLength": 1},
    "verdict": {"enum": ["evidence_valid", "evidence_invalid"]},
    "stale": {"type": "boolean"},
    "risks": {"type": "array", "items": {"type": "string"}},
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["text", "evidence_refs"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "evidence_refs": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "assumptions": {"$ref": "#/$defs/concerns"},
    "unknowns": {"$ref": "#/$defs/concerns"},
    "integration_edges": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["from", "to", "type", "confidence"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "contract": {"type": "string"},
          "evidence_refs": {"type": "array", "items": {"type": "string"}},
          "evidence_missing": {"type": "array", "items": {"type": "string"}},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  },
  "$defs": {
    "concerns": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["text"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "evidence_missing": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var compiledCommitteeSchema = jsonschema.MustCompileString("committee_output.schema.json", committeeOutputSchema)

func init() {
	register(KindCommitteeOutput, validateCommitteeOutput)
}

func validateCommitteeOutput(raw []byte) Report {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fail("committee output is not valid JSON: %v", err)
	}
	if err := compiledCommitteeSchema.Validate(generic); err != nil {
		return fail("committee output schema: %v", err)
	}

	var out types.CommitteeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return fail("committee output decode: %v", err)
	}
	NormalizeCommitteeOutput(&out)
	return Report{OK: true, Normalized: &out}
}

// NormalizeCommitteeOutput trims, sorts by canonical key, dedupes, and
// caps every list in place.
func NormalizeCommitteeOutput(out *types.CommitteeOutput) {
	out.Scope = strings.TrimSpace(out.Scope)

	for i := range out.Facts {
		out.Facts[i].Text = strings.TrimSpace(out.Facts[i].Text)
		out.Facts[i].EvidenceRefs = normalizeStringList(out.Facts[i].EvidenceRefs)
	}
	sort.SliceStable(out.Facts, func(i, j int) bool {
		return out.Facts[i].Text < out.Facts[j].Text
	})
	out.Facts = capList(out.Facts, MaxListEntries)

	normalizeConcerns(out.Assumptions)
	sort.SliceStable(out.Assumptions, func(i, j int) bool {
		return out.Assumptions[i].Text < out.Assumptions[j].Text
	})
	out.Assumptions = capList(out.Assumptions, MaxListEntries)

	normalizeConcerns(out.Unknowns)
	sort.SliceStable(out.Unknowns, func(i, j int) bool {
		return out.Unknowns[i].Text < out.Unknowns[j].Text
	})
	out.Unknowns = capList(out.Unknowns, MaxListEntries)

	for i := range out.IntegrationEdges {
		edge := &out.IntegrationEdges[i]
		edge.From = strings.TrimSpace(edge.From)
		edge.To = strings.TrimSpace(edge.To)
		edge.Type = strings.TrimSpace(edge.Type)
		edge.EvidenceRefs = normalizeStringList(edge.EvidenceRefs)
		edge.EvidenceMissing = normalizeStringList(edge.EvidenceMissing)
	}
	sort.SliceStable(out.IntegrationEdges, func(i, j int) bool {
		a, b := out.IntegrationEdges[i], out.IntegrationEdges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Type < b.Type
	})
	out.IntegrationEdges = capList(out.IntegrationEdges, MaxListEntries)

	out.Risks = capList(normalizeStringList(out.Risks), MaxListEntries)

	ensureEmptyLists(out)
}

func normalizeConcerns(concerns []types.CommitteeConcern) {
	for i := range concerns {
		concerns[i].Text = strings.TrimSpace(concerns[i].Text)
		concerns[i].EvidenceMissing = normalizeStringList(concerns[i].EvidenceMissing)
	}
}

// ensureEmptyLists keeps nil slices out of persisted JSON.
func ensureEmptyLists(out *types.CommitteeOutput) {
	if out.Facts == nil {
		out.Facts = []types.CommitteeClaim{}
	}
	if out.Assumptions == nil {
		out.Assumptions = []types.CommitteeConcern{}
	}
	if out.Unknowns == nil {
		out.Unknowns = []types.CommitteeConcern{}
	}
	if out.IntegrationEdges == nil {
		out.IntegrationEdges = []types.IntegrationEdge{}
	}
	if out.Risks == nil {
		out.Risks = []string{}
	}
	for i := range out.Facts {
		if out.Facts[i].EvidenceRefs == nil {
			out.Facts[i].EvidenceRefs = []string{}
		}
	}
}
