package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/model"
)

const policyInstructions = `You are a travel assistant answering an entry /
documentation question. Paraphrase the policy notes provided into a direct
answer. Always add that requirements change and the traveler should verify
with official sources before booking. Do not add facts beyond the notes.`

// policyTopic is one entry of the static policy table.
type policyTopic struct {
	keywords []string
	notes    string
}

// policyTable holds general, country-agnostic guidance. Questions it cannot
// match fall through to the web-search consent flow, where current
// country-specific rules can be looked up.
var policyTable = []policyTopic{
	{
		keywords: []string{"visa", "visas"},
		notes: "Visa requirements depend on the traveler's citizenship and destination. Many countries offer visa-free stays of 30-90 days for tourism or electronic travel authorizations (eVisa, ETA) that must be obtained online before departure. Passport validity of at least six months beyond the stay is a common precondition.",
	},
	{
		keywords: []string{"passport"},
		notes: "Most destinations require a passport valid for at least six months beyond the planned departure date with one or two blank pages. Renewals can take several weeks, so check validity well before booking.",
	},
	{
		keywords: []string{"customs", "duty", "duty-free"},
		notes: "Customs allowances typically cover limited quantities of alcohol and tobacco plus personal effects. Cash above roughly 10,000 USD/EUR must usually be declared. Fresh food, plants and animal products are widely restricted.",
	},
	{
		keywords: []string{"vaccine", "vaccination", "vaccinations", "immunization"},
		notes: "Routine vaccinations should be up to date for all travel. Yellow fever certificates are mandatory for entry to or from some tropical regions; hepatitis A and typhoid shots are commonly advised for parts of Asia, Africa and Latin America. A travel clinic visit 4-6 weeks before departure is the standard recommendation.",
	},
	{
		keywords: []string{"insurance"},
		notes: "Travel insurance covering medical care and repatriation is mandatory for some visas (e.g. Schengen: 30,000 EUR minimum coverage) and strongly advised everywhere. Check that the policy covers planned activities such as skiing or diving.",
	},
}

// Policy answers entry-requirement style questions from the static table. A
// question matching no topic returns ErrNeedsWebSearch so the pipeline can
// offer a live search instead of guessing.
type Policy struct {
	model model.Model
}

// NewPolicy builds the policy handler.
func NewPolicy(m model.Model) *Policy {
	return &Policy{model: m}
}

// Name implements Handler.
func (h *Policy) Name() string { return "policy" }

// Handle implements Handler.
func (h *Policy) Handle(ctx context.Context, req Request) (*Response, error) {
	lowered := strings.ToLower(req.Message)

	var matched *policyTopic
	for i := range policyTable {
		for _, kw := range policyTable[i].keywords {
			if strings.Contains(lowered, kw) {
				matched = &policyTable[i]
				break
			}
		}
		if matched != nil {
			break
		}
	}

	if matched == nil {
		return nil, ErrNeedsWebSearch
	}

	prompt := fmt.Sprintf("Question: %s\n\nPolicy notes: %s", req.Message, matched.notes)
	text, err := phrase(ctx, h.model, policyInstructions, prompt)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:    text,
		Sources: []core.SourceRef{{Service: "policy-table", Detail: "topic: " + matched.keywords[0]}},
	}, nil
}
