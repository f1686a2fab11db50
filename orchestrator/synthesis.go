package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carelink-project/carelink-multi-agent/metrics"
	"github.com/carelink-project/carelink-multi-agent/types"
)

const synthesisSystem = `You merge answers from specialized assistants into ONE coherent reply
for a chronic-disease patient. Preserve each assistant's key facts and any
citations. Do not invent information. Answer in the language of the
original question. Plain text only.`

// compose turns the dispatch results into the final response. Exactly one
// success passes through verbatim; two or more trigger the synthesis
// model; zero successes fails the request.
func (o *Orchestrator) compose(ctx context.Context, q *types.Query, cls *types.ClassificationResult, results map[string]*types.DispatchResult) (*types.SynthesizedResponse, error) {
	// Successful domains in classification rank order; the first is the
	// primary domain.
	var succeeded []*types.DispatchResult
	for _, cand := range cls.Candidates {
		if dr, ok := results[cand.Domain]; ok && dr.Success {
			succeeded = append(succeeded, dr)
		}
	}
	if len(succeeded) == 0 {
		var errs []string
		for _, dr := range results {
			if dr.Err != "" {
				errs = append(errs, fmt.Sprintf("%s: %s", dr.Domain, dr.Err))
			}
		}
		return nil, types.NewFailure(types.FailureResponseGeneration,
			fmt.Errorf("all dispatches failed: %s", strings.Join(errs, "; ")))
	}

	resp := &types.SynthesizedResponse{
		Primary:  succeeded[0].Domain,
		RoutedTo: make([]string, 0, len(succeeded)),
		Results:  results,
	}
	for _, dr := range succeeded {
		resp.RoutedTo = append(resp.RoutedTo, dr.Domain)
	}

	if len(succeeded) == 1 {
		resp.Answer = succeeded[0].Answer
		return resp, nil
	}

	resp.Synthesis = true
	metrics.SynthesisTotal.Inc()
	resp.Answer = o.synthesize(ctx, q.Text, succeeded)
	o.emit("synthesis", q.SessionID, resp.RoutedTo, "")
	return resp, nil
}

// synthesize asks the composing model to merge the answers. If the model
// call fails, the answers are joined section by section so the user still
// gets every domain's content.
func (o *Orchestrator) synthesize(ctx context.Context, question string, succeeded []*types.DispatchResult) string {
	payload := map[string]any{"question": question}
	answers := make(map[string]string, len(succeeded))
	for _, dr := range succeeded {
		answers[dr.Domain] = dr.Answer
	}
	payload["answers"] = answers
	b, _ := json.Marshal(payload)

	if o.synth != nil {
		if merged, err := o.synth.Chat(ctx, synthesisSystem, string(b)); err == nil && strings.TrimSpace(merged) != "" {
			return strings.TrimSpace(merged)
		} else if err != nil {
			o.log.Error("synthesis model call failed, joining answers", err)
		}
	}

	var sb strings.Builder
	for i, dr := range succeeded {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%s]\n%s", dr.Domain, dr.Answer))
	}
	return sb.String()
}
